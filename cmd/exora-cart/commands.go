package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/exora/cart-session/internal/config"
	"github.com/exora/cart-session/internal/health"
	"github.com/exora/cart-session/internal/models"
	"github.com/spf13/cobra"
)

var (
	showJSON  bool
	addQty    int
	addSize   string
	firstName string
	lastName  string
	role      string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		m := current.Cart(ctx)
		if _, ok := current.session.Token(ctx); !ok {
			return fmt.Errorf("not logged in: run 'exora-cart session save' or pass --token")
		}

		if m.Stale() {
			fmt.Fprintln(current.out, "⚠️ Cart could not be refreshed; showing what is known")
		}

		snap := m.Snapshot()

		if showJSON {
			enc := json.NewEncoder(current.out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		printCart(current.out, snap)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <productId>",
	Short: "Add a product to the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		current.Cart(ctx).AddToCart(ctx, args[0], addQty, addSize)
		return current.result()
	},
}

var buyCmd = &cobra.Command{
	Use:   "buy <productId>",
	Short: "Add a product and go straight to checkout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		current.Cart(ctx).BuyNow(ctx, args[0], addQty, addSize)
		return current.result()
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <productId> <size> <quantity>",
	Short: "Set the quantity of a cart line",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("quantity must be a number: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		m := current.Cart(ctx)
		m.UpdateQuantity(ctx, args[0], args[1], quantity)
		if err := current.result(); err != nil {
			return err
		}

		// updates are silent in the container
		if item, ok := m.Snapshot().Find(args[0], args[1]); ok {
			fmt.Fprintf(current.out, "%s (%s) × %d\n", item.Name, item.Size, item.Quantity)
		}

		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <productId> <size>",
	Short: "Remove a line from the cart",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		current.Cart(ctx).RemoveFromCart(ctx, args[0], args[1])
		return current.result()
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		current.Cart(ctx).ClearCart(ctx)
		return current.result()
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the stored session",
	Long: `Manage the session token and cached profile.

Available subcommands:
  save  - Store a bearer token and profile
  show  - Print the stored profile
  clear - Forget the stored session (logout)`,
}

var sessionSaveCmd = &cobra.Command{
	Use:   "save <token>",
	Short: "Store a bearer token and profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if current.cfg.Session.Driver != config.SessionDriverRedis {
			fmt.Fprintln(current.out, "ℹ️ Session driver is memory; the token only lives for this run")
		}

		return current.session.Save(cmd.Context(), models.Session{
			Token: args[0],
			User: models.UserProfile{
				FirstName: firstName,
				LastName:  lastName,
				Type:      role,
			},
		})
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if _, ok := current.session.Token(ctx); !ok {
			fmt.Fprintln(current.out, "Not logged in")
			return nil
		}

		profile, ok := current.session.Profile(ctx)
		if !ok {
			fmt.Fprintln(current.out, "Logged in (no profile cached)")
			return nil
		}

		fmt.Fprintf(current.out, "Logged in as %s (%s)\n", profile.FullName(), current.session.Role(ctx))
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := current.logout(cmd.Context()); err != nil {
			return err
		}

		fmt.Fprintln(current.out, "Logged out")
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the cart API and session store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h, err := health.NewHealthHandler(current.cfg, &health.Endpoints{CartAPI: current.client})
		if err != nil {
			return err
		}

		check := h.Measure(cmd.Context())

		enc := json.NewEncoder(current.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(check); err != nil {
			return err
		}

		if len(check.Failures) > 0 {
			return fmt.Errorf("unhealthy: %d failing check(s)", len(check.Failures))
		}

		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the cart as JSON")

	for _, c := range []*cobra.Command{addCmd, buyCmd} {
		c.Flags().IntVarP(&addQty, "quantity", "q", models.DefaultQuantity, "Quantity to add")
		c.Flags().StringVarP(&addSize, "size", "s", models.DefaultSize, "Size (XS, S, M, L, XL, XXL)")
	}

	sessionSaveCmd.Flags().StringVar(&firstName, "first-name", "", "Profile first name")
	sessionSaveCmd.Flags().StringVar(&lastName, "last-name", "", "Profile last name")
	sessionSaveCmd.Flags().StringVar(&role, "role", "customer", "Profile role")
}

func printCart(w io.Writer, cart models.Cart) {
	if cart.IsEmpty() {
		fmt.Fprintln(w, "Your cart is empty")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tSIZE\tQTY\tPRICE")
	for _, item := range cart.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\n", item.ProductID, item.Name, item.Size, item.Quantity, item.Price)
	}
	fmt.Fprintf(tw, "\t\t\t%d\t%.2f\n", cart.ItemCount(), cart.TotalAmount)
	tw.Flush()
}
