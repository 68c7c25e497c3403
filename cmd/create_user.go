package cmd

import (
	"fmt"
	"net/mail"
	"strings"
	"syscall"

	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// createUserCmd represents the create-user command
var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Creates a new user account",
	Long: `Creates a user directly in the database, bypassing the API. Meant for
bootstrapping the first admin account and for recovering locked-out
installs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username, err := cmd.Flags().GetString("username")
		if err != nil {
			return fmt.Errorf("error getting 'username' flag: %v", err)
		}
		username = strings.TrimSpace(username)
		if username == "" {
			return fmt.Errorf("username cannot be empty")
		}

		email, err := cmd.Flags().GetString("email")
		if err != nil {
			return fmt.Errorf("error getting 'email' flag: %v", err)
		}
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return fmt.Errorf("invalid email address: %v", err)
			}
		}

		role, err := cmd.Flags().GetString("role")
		if err != nil {
			return fmt.Errorf("error getting 'role' flag: %v", err)
		}
		if role != db.UserRoleAdmin && role != db.UserRoleViewer {
			return fmt.Errorf("invalid role '%s', valid roles are admin and viewer", role)
		}

		password, err := cmd.Flags().GetString("password")
		if err != nil {
			return fmt.Errorf("error getting 'password' flag: %v", err)
		}

		if password == "" {
			fmt.Print("Enter password: ")
			bytePwd, err := term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				return fmt.Errorf("error reading password: %v", err)
			}
			password = string(bytePwd)
			fmt.Println()
		}

		if err := auth.CheckPasswordPolicy(password); err != nil {
			return fmt.Errorf("invalid password: %v", err)
		}

		if _, err := db.InitDb(); err != nil {
			return fmt.Errorf("error opening database: %v", err)
		}

		existing, _ := db.Connection.GetUserByUsername(username)
		if existing != nil {
			return fmt.Errorf("user with username '%s' already exists", username)
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %v", err)
		}

		fullName, _ := cmd.Flags().GetString("full-name")
		user, err := db.Connection.CreateUser(&db.User{
			Username:       username,
			Email:          email,
			FullName:       fullName,
			HashedPassword: hash,
			Role:           role,
			IsActive:       true,
		})
		if err != nil {
			return fmt.Errorf("error creating user: %v", err)
		}

		fmt.Printf("User created successfully! ID: %d\n", user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createUserCmd)

	createUserCmd.Flags().StringP("username", "u", "", "Username for the new user (required)")
	createUserCmd.Flags().StringP("email", "e", "", "Email for the new user (optional, must be valid email format)")
	createUserCmd.Flags().StringP("password", "p", "", "Password for the new user (if omitted, will be prompted; must be at least 7 characters with letters and numbers)")
	createUserCmd.Flags().StringP("role", "r", "admin", "Role for the new user (admin, viewer)")
	createUserCmd.Flags().String("full-name", "", "Full name for the new user")

	cobra.CheckErr(createUserCmd.MarkFlagRequired("username"))
}
