package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkalas/centavo/internal/cli"
	"github.com/mkalas/centavo/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage transaction categories",
		RunE:  runCategoriesList,
	}
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE:  runCategoriesAdd,
	}
	add.Flags().String("type", "expense", "category type (income, expense)")
	add.Flags().String("color", "", "display color")
	add.Flags().String("icon", "", "display icon")
	cmd.AddCommand(add)
	return cmd
}

func runCategoriesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	docs, err := application.engine.FetchAll(ctx, model.CollectionCategories)
	if err != nil {
		return err
	}
	categories, err := model.DecodeCategories(docs)
	if err != nil {
		return err
	}

	if len(categories) == 0 {
		fmt.Println(cli.SubtleStyle.Render("no categories"))
		return nil
	}
	for _, c := range categories {
		line := fmt.Sprintf("%-24s %s", c.Name, cli.SubtleStyle.Render(c.ID))
		if model.IsTempID(c.ID) {
			line += "  " + cli.WarningStyle.Render("(pending)")
		}
		fmt.Println(line)
	}
	return nil
}

func runCategoriesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	typFlag, _ := cmd.Flags().GetString("type")
	typ := model.CategoryType(typFlag)
	if typ != model.CategoryTypeIncome && typ != model.CategoryTypeExpense {
		return fmt.Errorf("invalid type %q: must be income or expense", typFlag)
	}
	color, _ := cmd.Flags().GetString("color")
	icon, _ := cmd.Flags().GetString("icon")

	now := time.Now().UTC()
	category := model.Category{
		ID:        model.NewTempID(),
		Name:      args[0],
		Type:      typ,
		Color:     color,
		Icon:      icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc, err := model.NewDocument(category)
	if err != nil {
		return err
	}

	created, err := application.engine.Create(ctx, model.CollectionCategories, doc)
	if err != nil {
		return err
	}

	if model.IsTempID(created.ID) {
		fmt.Println(cli.FormatWarning("saved locally; will sync when online"))
	} else {
		fmt.Println(cli.FormatSuccess("category created"))
	}
	return nil
}
