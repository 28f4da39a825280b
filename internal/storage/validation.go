package storage

import (
	"context"
	"fmt"

	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/model"
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: context cannot be nil", common.ErrInvalidInput)
	}
	return ctx.Err()
}

func validateString(s, name string) error {
	if s == "" {
		return fmt.Errorf("%w: %s cannot be empty", common.ErrInvalidInput, name)
	}
	return nil
}

func validateCollection(c model.Collection) error {
	if !model.ValidCollection(c) {
		return fmt.Errorf("%w: unknown collection %q", common.ErrInvalidInput, c)
	}
	return nil
}

func validateMutation(m model.Mutation) error {
	if m.ID == "" {
		return fmt.Errorf("%w: mutation id cannot be empty", common.ErrInvalidInput)
	}
	switch m.Type {
	case model.MutationCreate, model.MutationUpdate, model.MutationDelete:
	default:
		return fmt.Errorf("%w: unknown mutation type %q", common.ErrInvalidInput, m.Type)
	}
	if err := validateCollection(m.Collection); err != nil {
		return err
	}
	if m.EntityID == "" {
		return fmt.Errorf("%w: mutation entity id cannot be empty", common.ErrInvalidInput)
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("%w: mutation timestamp cannot be zero", common.ErrInvalidInput)
	}
	return nil
}
