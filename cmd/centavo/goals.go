package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mkalas/centavo/internal/cli"
	"github.com/mkalas/centavo/internal/model"
)

func goalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Manage savings goals",
		RunE:  runGoalsList,
	}

	add := &cobra.Command{
		Use:   "add NAME TARGET",
		Short: "Create a savings goal",
		Args:  cobra.ExactArgs(2),
		RunE:  runGoalsAdd,
	}
	add.Flags().String("deadline", "", "target date (YYYY-MM-DD)")
	cmd.AddCommand(add)

	contribute := &cobra.Command{
		Use:   "contribute GOAL_ID AMOUNT",
		Short: "Deposit into a savings goal",
		Args:  cobra.ExactArgs(2),
		RunE:  runGoalsContribute,
	}
	contribute.Flags().Bool("withdraw", false, "withdraw instead of deposit")
	cmd.AddCommand(contribute)

	return cmd
}

func runGoalsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	docs, err := application.engine.FetchAll(ctx, model.CollectionSavingsGoals)
	if err != nil {
		return err
	}
	goals, err := model.DecodeSavingsGoals(docs)
	if err != nil {
		return err
	}

	if len(goals) == 0 {
		fmt.Println(cli.SubtleStyle.Render("no savings goals"))
		return nil
	}
	for _, g := range goals {
		progress := fmt.Sprintf("%s / %s", g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2))
		line := fmt.Sprintf("%-24s %s", g.Name, progress)
		if g.Deadline != nil {
			line += "  " + cli.SubtleStyle.Render("by "+g.Deadline.Format("2006-01-02"))
		}
		if model.IsTempID(g.ID) {
			line += "  " + cli.WarningStyle.Render("(pending)")
		}
		fmt.Println(line)
	}
	return nil
}

func runGoalsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	target, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", args[1], err)
	}
	if !target.IsPositive() {
		return fmt.Errorf("target must be positive, got %s", target)
	}

	var deadline *time.Time
	if deadlineFlag, _ := cmd.Flags().GetString("deadline"); deadlineFlag != "" {
		t, err := time.Parse("2006-01-02", deadlineFlag)
		if err != nil {
			return fmt.Errorf("invalid deadline %q: %w", deadlineFlag, err)
		}
		deadline = &t
	}

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	now := time.Now().UTC()
	goal := model.SavingsGoal{
		ID:            model.NewTempID(),
		Name:          args[0],
		TargetAmount:  target,
		CurrentAmount: decimal.Zero,
		Deadline:      deadline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	doc, err := model.NewDocument(goal)
	if err != nil {
		return err
	}

	created, err := application.engine.Create(ctx, model.CollectionSavingsGoals, doc)
	if err != nil {
		return err
	}

	if model.IsTempID(created.ID) {
		fmt.Println(cli.FormatWarning("saved locally; will sync when online"))
	} else {
		fmt.Println(cli.FormatSuccess("savings goal created"))
	}
	return nil
}

func runGoalsContribute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}

	typ := model.SavingsDeposit
	if withdraw, _ := cmd.Flags().GetBool("withdraw"); withdraw {
		typ = model.SavingsWithdrawal
	}

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	now := time.Now().UTC()
	movement := model.SavingsTransaction{
		ID:            model.NewTempID(),
		SavingsGoalID: args[0],
		Type:          typ,
		Amount:        amount,
		Date:          now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	doc, err := model.NewDocument(movement)
	if err != nil {
		return err
	}

	created, err := application.engine.Create(ctx, model.CollectionSavingsTransactions, doc)
	if err != nil {
		return err
	}

	if model.IsTempID(created.ID) {
		fmt.Println(cli.FormatWarning("saved locally; will sync when online"))
	} else {
		fmt.Println(cli.FormatSuccess("contribution recorded"))
	}
	return nil
}
