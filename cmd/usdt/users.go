package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register USERNAME",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		role, _ := cmd.Flags().GetString("role")
		code, _ := cmd.Flags().GetString("code")

		a, err := newApp(cmd, "Register")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		credential, err := readSecret("USDT_PASSWORD", "New password")
		if err != nil {
			return err
		}

		u, err := a.Register(cmd.Context(), args[0], credential, role, code)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s as %s\n", u.Username, u.Role)
		return nil
	},
}

var userCapacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Show how many users of each role can still register",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "RoleCapacity")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		c, err := a.Capacity(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Admins:    %d/%d%s\n", c.Admins, c.MaxAdmins, fullMark(c.AdminsFull()))
		fmt.Printf("Operators: %d/%d%s\n", c.Operators, c.MaxOperators, fullMark(c.OperatorsFull()))
		return nil
	},
}

func fullMark(full bool) string {
	if full {
		return "  (full)"
	}
	return ""
}

func init() {
	userCmd.AddCommand(userRegisterCmd)
	userRegisterCmd.Flags().String("role", "operator", "Role: admin or operator")
	userRegisterCmd.Flags().String("code", "", "Registration code, when the instance requires one")
	userCmd.AddCommand(userCapacityCmd)
}
