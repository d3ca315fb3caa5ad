package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
	"kakeibo/internal/services"
)

// NewRootCommand builds the kakeibo-cli command tree around a ledger service.
func NewRootCommand(svc *services.LedgerService) *cobra.Command {
	root := &cobra.Command{
		Use:   "kakeibo-cli",
		Short: "Inspect and edit the household ledger",
		Long: `kakeibo-cli works on the same ledger as the web app. It lists and
adds entries, deletes rows by position and computes the monthly settlement
between the two parties.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newSettleCmd(svc),
		newListCmd(svc),
		newAddCmd(svc),
		newDeleteCmd(svc),
		newExportCmd(svc),
		newMonthsCmd(svc),
		newCategoriesCmd(svc),
	)
	return root
}

// monthArg reads an optional YYYY-MM argument, defaulting to the current month.
func monthArg(svc *services.LedgerService, args []string) (core.YearMonth, error) {
	if len(args) == 0 {
		return core.CurrentYearMonth(svc.Now()), nil
	}
	return core.ParseYearMonth(args[0])
}

func newSettleCmd(svc *services.LedgerService) *cobra.Command {
	return &cobra.Command{
		Use:   "settle [YYYY-MM]",
		Short: "Compute the settlement of a month",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ym, err := monthArg(svc, args)
			if err != nil {
				return err
			}
			v, err := svc.MonthView(cmd.Context(), ym)
			if err != nil {
				return err
			}
			st, p := v.Settlement, v.Settlement.Parties
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s\n\n", ym.Label(), st.Summary())

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(w, "%s → %s\t%s\t\n", p.A, p.B, core.FormatYen(st.AOwesB))
			fmt.Fprintf(w, "%s → %s\t%s\t\n", p.B, p.A, core.FormatYen(st.BOwesA))
			fmt.Fprintf(w, "%s\t%s\t\n", "合計", v.Overview.Total)
			for _, c := range v.Overview.ByCategory {
				fmt.Fprintf(w, "  %s\t%s\t\n", c.Name, c.Amount)
			}
			return w.Flush()
		},
	}
}

func newListCmd(svc *services.LedgerService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries with their positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			month, _ := cmd.Flags().GetString("month")
			entries, err := svc.Entries(cmd.Context())
			if err != nil {
				return err
			}
			var ym core.YearMonth
			if month != "" {
				if ym, err = core.ParseYearMonth(month); err != nil {
					return err
				}
			}
			return writeEntries(cmd.OutOrStdout(), entries, ym)
		},
	}
	cmd.Flags().StringP("month", "m", "", "Only show entries of this month (YYYY-MM)")
	return cmd
}

// writeEntries prints entries with their ledger position, which is what
// delete expects. A zero ym prints everything.
func writeEntries(out io.Writer, entries []core.LedgerEntry, ym core.YearMonth) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\t支払日\t金額\t支払い者\t購入品使用者\tカテゴリ\tメモ")
	var total int64
	for i, e := range entries {
		if ym.Year != 0 && (e.PaymentDate.Year() != ym.Year || int(e.PaymentDate.Month()) != ym.Month) {
			continue
		}
		total += e.Amount.Yen
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i, e.PaymentDate, e.Amount, e.Payer, e.Beneficiary, category(e), e.Memo)
	}
	fmt.Fprintf(w, "\t合計\t%s\t\t\t\t\n", core.FormatYen(total))
	return w.Flush()
}

func category(e core.LedgerEntry) string {
	if e.OtherCategoryNote != "" {
		return e.Category + " (" + e.OtherCategoryNote + ")"
	}
	return e.Category
}

func newAddCmd(svc *services.LedgerService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a ledger entry",
		Example: `  kakeibo-cli add --date 2025-03-01 --amount 1200 --payer たう --for 共用 --category 食費
  kakeibo-cli add --amount 980 --payer 割勘 --for 共用 --category その他 --other-note 雑貨`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			date, _ := f.GetString("date")
			amount, _ := f.GetString("amount")
			payer, _ := f.GetString("payer")
			beneficiary, _ := f.GetString("for")
			category, _ := f.GetString("category")
			note, _ := f.GetString("other-note")
			memo, _ := f.GetString("memo")

			in := services.EntryInput{
				Payer:             core.Party(payer),
				Beneficiary:       core.Party(beneficiary),
				Category:          category,
				OtherCategoryNote: note,
				Memo:              memo,
			}
			if date == "" {
				now := svc.Now()
				in.PaymentDate = core.NewDate(now.Year(), int(now.Month()), now.Day())
			} else {
				d, err := core.ParseDate(date)
				if err != nil {
					return fmt.Errorf("payment date %q: %w", date, core.ErrInvalidDay)
				}
				in.PaymentDate = d
			}
			yen, err := core.ParseYen(amount)
			if err != nil {
				return err
			}
			in.AmountYen = yen

			e, ref, err := svc.CreateEntry(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s %s %s → %s (%s) [%s]\n",
				e.PaymentDate, e.Amount, e.Payer, e.Beneficiary, e.Category, ref)
			return nil
		},
	}
	cmd.Flags().String("date", "", "Payment date YYYY-MM-DD (default today)")
	cmd.Flags().String("amount", "", "Amount in yen")
	cmd.Flags().String("payer", "", "Who paid")
	cmd.Flags().String("for", "", "Who the purchase was for")
	cmd.Flags().String("category", "", "Category")
	cmd.Flags().String("other-note", "", "Free text when the category is その他")
	cmd.Flags().String("memo", "", "Memo")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("payer")
	_ = cmd.MarkFlagRequired("for")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newDeleteCmd(svc *services.LedgerService) *cobra.Command {
	return &cobra.Command{
		Use:   "delete POSITION...",
		Short: "Delete entries by their position in list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices := make([]int, 0, len(args))
			for _, a := range args {
				i, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("invalid position %q", a)
				}
				indices = append(indices, i)
			}
			removed, err := svc.DeleteEntries(cmd.Context(), indices)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", len(removed))
			return nil
		},
	}
}

func newExportCmd(svc *services.LedgerService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("out")
			if path == "" || path == "-" {
				return svc.ExportCSV(cmd.Context(), cmd.OutOrStdout())
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			if err := svc.ExportCSV(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output file (default stdout)")
	return cmd
}

func newMonthsCmd(svc *services.LedgerService) *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "List the selectable settlement months",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, ym := range core.MonthOptions(svc.Now()) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ym.Key(), ym.Label())
			}
		},
	}
}

func newCategoriesCmd(svc *services.LedgerService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List or edit categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := svc.Categories(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME",
			Short: "Add a category",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return svc.AddCategory(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "remove NAME",
			Short: "Remove a category",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return svc.RemoveCategory(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}
