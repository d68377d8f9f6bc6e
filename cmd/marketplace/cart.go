package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/gomarketplace/internal/errors"
	"github.com/vango-dev/gomarketplace/pkg/cart"
)

const cartCommandTimeout = 30 * time.Second

func cartCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the persisted cart",
		Long: `Inspect and change the persisted cart.

Each command loads the cart from storage, applies one change, waits for
the write, and prints the result.

Examples:
  marketplace cart list
  marketplace cart add --id=1 --title="Mug" --price=9.50
  marketplace cart inc 1
  marketplace cart dec 1`,
	}

	cmd.AddCommand(
		cartListCmd(flags),
		cartAddCmd(flags),
		cartIncCmd(flags),
		cartDecCmd(flags),
	)
	return cmd
}

func cartListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, flags, func(s *cart.Store) (cart.Cart, bool) {
				return s.Products(), false
			})
		},
	}
}

func cartAddCmd(flags *globalFlags) *cobra.Command {
	var (
		id, title, image, price string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product, or raise its quantity if already present",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(id) == "" {
				return errors.Newf(errors.CategoryCLI, "--id must not be empty")
			}
			p, err := cart.ParsePrice(price)
			if err != nil {
				return errors.Newf(errors.CategoryCLI, "invalid --price %q", price).Wrap(err)
			}
			product := cart.Product{ID: id, Title: title, ImageURL: image, Price: p}
			return withCart(cmd, flags, func(s *cart.Store) (cart.Cart, bool) {
				return s.AddToCart(product)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Product ID (required)")
	cmd.Flags().StringVar(&title, "title", "", "Product title")
	cmd.Flags().StringVar(&image, "image", "", "Product image URL")
	cmd.Flags().StringVar(&price, "price", "0", "Unit price, e.g. 19.90")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func cartIncCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inc <id>",
		Short: "Raise a product's quantity by one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, flags, func(s *cart.Store) (cart.Cart, bool) {
				return s.Increment(args[0])
			})
		},
	}
}

func cartDecCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dec <id>",
		Short: "Lower a product's quantity by one, removing it at zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(cmd, flags, func(s *cart.Store) (cart.Cart, bool) {
				return s.Decrement(args[0])
			})
		},
	}
}

// withCart opens the store, waits for hydration, applies op, waits for the
// write, and prints the resulting cart.
func withCart(cmd *cobra.Command, flags *globalFlags, op func(*cart.Store) (cart.Cart, bool)) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cartCommandTimeout)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.WaitReady(ctx); err != nil {
		return err
	}
	if herr := store.HydrateErr(); herr != nil {
		if errors.HasCode(herr, "E010") {
			warn(cmd.OutOrStdout(), "stored cart was unreadable and will be replaced on the next change")
		} else {
			return herr
		}
	}

	c, changed := op(store)
	if err := store.Flush(ctx); err != nil {
		return err
	}
	if werr := store.LastWriteErr(); werr != nil {
		return werr
	}

	out := cmd.OutOrStdout()
	printCart(out, c)
	if changed {
		success(out, "saved to %s storage", cfg.Storage.Backend)
	}
	return nil
}

func printCart(w io.Writer, c cart.Cart) {
	if len(c) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tQTY")
	for _, it := range c {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", it.ID, it.Title, it.Price.StringFixed(2), it.Quantity)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d lines, %d units\n", c.Lines(), c.Units())
}
