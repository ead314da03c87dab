package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rosterctl",
	Short: "Roster access CLI",
	Long:  "A CLI for managing shifts, clock events and access grants.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
		// Env var overrides are applied in newClient()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with -format=raw)")

	rootCmd.AddCommand(shiftCmd())
	rootCmd.AddCommand(clockCmd())
	rootCmd.AddCommand(accessCmd())
	rootCmd.AddCommand(grantCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(configCmd())
}

// --- shift ---

func shiftCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "shift", Short: "Manage roster shifts"}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a shift",
		RunE: func(cmd *cobra.Command, args []string) error {
			staff, _ := cmd.Flags().GetString("staff")
			property, _ := cmd.Flags().GetString("property")
			clients, _ := cmd.Flags().GetStringSlice("clients")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			status, _ := cmd.Flags().GetString("status")
			client := newClient()
			result, err := client.post("/v1/shifts", map[string]any{
				"staff_id":    staff,
				"property_id": property,
				"client_ids":  clients,
				"start":       start,
				"end":         end,
				"status":      status,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
	createCmd.Flags().String("staff", "", "Staff member ID")
	createCmd.Flags().String("property", "", "Property ID")
	createCmd.Flags().StringSlice("clients", nil, "Client IDs covered by the shift")
	createCmd.Flags().String("start", "", "Shift start (RFC3339)")
	createCmd.Flags().String("end", "", "Shift end (RFC3339)")
	createCmd.Flags().String("status", "assigned", "Shift status: open or assigned")

	getCmd := &cobra.Command{
		Use:   "get <shift-id>",
		Short: "Read a shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/shifts/" + args[0])
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <staff-id>",
		Short: "List a staff member's shifts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			params := []string{"staff=" + args[0]}
			if from != "" {
				params = append(params, "from="+from)
			}
			if to != "" {
				params = append(params, "to="+to)
			}
			client := newClient()
			result, err := client.get("/v1/shifts?" + strings.Join(params, "&"))
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
	listCmd.Flags().String("from", "", "Window start (RFC3339, default 24h ago)")
	listCmd.Flags().String("to", "", "Window end (RFC3339, default 24h ahead)")

	cancelCmd := &cobra.Command{
		Use:   "cancel <shift-id>",
		Short: "Cancel a shift and revoke any access it granted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if err := client.delete("/v1/shifts/" + args[0]); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Success! Shift cancelled.")
			return nil
		},
	}

	cmd.AddCommand(createCmd, getCmd, listCmd, cancelCmd)
	return cmd
}

// --- clock ---

func clockCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "clock", Short: "Record clock events"}

	event := func(use, short, kind string) *cobra.Command {
		c := &cobra.Command{
			Use:   use + " <shift-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				staff, _ := cmd.Flags().GetString("staff")
				reason, _ := cmd.Flags().GetString("reason")
				client := newClient()
				result, err := client.post("/v1/clock/"+args[0], map[string]any{
					"staff_id": staff,
					"kind":     kind,
					"reason":   reason,
				})
				if err != nil {
					printError(err.Error())
					return nil
				}
				printResult(result)
				return nil
			},
		}
		c.Flags().String("staff", "", "Staff member ID")
		c.Flags().String("reason", "", "Reason (early finishes)")
		return c
	}

	reasonCmd := &cobra.Command{
		Use:   "reason <shift-id> <reason...>",
		Short: "Supply the reason for a pending early finish",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			_, err := client.post("/v1/clock/"+args[0]+"/reason", map[string]any{
				"reason": strings.Join(args[1:], " "),
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Success! Reason recorded.")
			return nil
		},
	}

	cmd.AddCommand(
		event("in", "Clock in to a shift", "clock_in"),
		event("out", "Clock out of a shift", "clock_out"),
		event("early-finish", "Finish a shift early", "early_finish"),
		reasonCmd,
	)
	return cmd
}

// --- access ---

func accessCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "access", Short: "Query effective access"}

	propsCmd := &cobra.Command{
		Use:   "properties <staff-id>",
		Short: "List properties a staff member can access right now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/access/" + args[0] + "/properties")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	clientsCmd := &cobra.Command{
		Use:   "clients <staff-id>",
		Short: "List clients a staff member can access right now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/access/" + args[0] + "/clients")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	cmd.AddCommand(propsCmd, clientsCmd)
	return cmd
}

// --- grant ---

func grantCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "grant", Short: "Manage manual access overrides"}

	setCmd := &cobra.Command{
		Use:   "set <staff-id>",
		Short: "Create a manual grant (or deny) for a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			property, _ := cmd.Flags().GetString("property")
			clients, _ := cmd.Flags().GetStringSlice("clients")
			until, _ := cmd.Flags().GetString("until")
			deny, _ := cmd.Flags().GetBool("deny")
			body := map[string]any{
				"property_id": property,
				"client_ids":  clients,
				"deny":        deny,
			}
			if until != "" {
				body["valid_until"] = until
			}
			client := newClient()
			result, err := client.post("/v1/grants/"+args[0], body)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
	setCmd.Flags().String("property", "", "Property ID")
	setCmd.Flags().StringSlice("clients", nil, "Client IDs covered by the grant")
	setCmd.Flags().String("until", "", "Expiry (RFC3339, empty for no expiry)")
	setCmd.Flags().Bool("deny", false, "Deny access instead of granting it")

	clearCmd := &cobra.Command{
		Use:   "clear <staff-id> <property-id>",
		Short: "Clear a manual grant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if err := client.delete("/v1/grants/" + args[0] + "/" + args[1]); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Success! Manual grant cleared.")
			return nil
		},
	}

	cmd.AddCommand(setCmd, clearCmd)
	return cmd
}

// --- audit ---

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Inspect the audit trail"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			staff, _ := cmd.Flags().GetString("staff")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			limit, _ := cmd.Flags().GetInt("limit")
			params := []string{fmt.Sprintf("limit=%d", limit)}
			if staff != "" {
				params = append(params, "staff="+staff)
			}
			if from != "" {
				params = append(params, "from="+from)
			}
			if to != "" {
				params = append(params, "to="+to)
			}
			client := newClient()
			result, err := client.get("/v1/audit?" + strings.Join(params, "&"))
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
	listCmd.Flags().String("staff", "", "Filter by staff member ID")
	listCmd.Flags().String("from", "", "Only entries at or after this time (RFC3339)")
	listCmd.Flags().String("to", "", "Only entries before this time (RFC3339)")
	listCmd.Flags().Int("limit", 100, "Maximum entries to return")

	deadletterCmd := &cobra.Command{
		Use:   "deadletter",
		Short: "List audit entries that failed to persist",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/audit/deadletter")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	cmd.AddCommand(listCmd, deadletterCmd)
	return cmd
}

// --- config ---

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect and update the access policy"}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the active access policy configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/sys/config")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	applyCmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Replace the access policy configuration from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				printError(err.Error())
				return nil
			}
			var body map[string]any
			if err := parseJSON(data, &body); err != nil {
				printError(err.Error())
				return nil
			}
			client := newClient()
			result, err := client.put("/v1/sys/config", body)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	addrCmd := &cobra.Command{
		Use:   "set-address <address>",
		Short: "Persist the server address in the CLI config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loadConfig()
			cfg.Address = args[0]
			if err := saveConfig(); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Success! Address saved.")
			return nil
		},
	}

	cmd.AddCommand(getCmd, applyCmd, addrCmd)
	return cmd
}
