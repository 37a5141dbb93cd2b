package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

type meResult struct {
	User struct {
		ID           string  `json:"id"`
		Email        string  `json:"email"`
		CreatedAt    string  `json:"created_at,omitempty"`
		LastSignInAt *string `json:"last_sign_in_at,omitempty"`
	} `json:"user"`
	Profile *profileResult `json:"profile"`
	Trial   *struct {
		Active        bool   `json:"active"`
		DaysRemaining int    `json:"days_remaining"`
		EndsAt        string `json:"ends_at,omitempty"`
	} `json:"trial"`
}

type profileResult struct {
	ID                 string   `json:"id,omitempty"`
	Email              string   `json:"email,omitempty"`
	FullName           string   `json:"full_name"`
	CompanyName        string   `json:"company_name"`
	CompanyDescription string   `json:"company_description"`
	Country            string   `json:"country"`
	Telephone          string   `json:"telephone"`
	CPVCodes           []string `json:"cpv_codes"`
}

// ProfileCmd creates the profile parent command
func ProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit your company profile",
	}

	cmd.PersistentFlags().String("token", "", "Access token (overrides stored session)")
	cmd.PersistentFlags().String("api-url", "", "tendersync API URL")

	cmd.AddCommand(ProfileShowCmd())
	cmd.AddCommand(ProfileSetCmd())

	return cmd
}

// ProfileShowCmd prints the account, profile and trial state.
func ProfileShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show account, profile and trial",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := client.Get("/me", nil)
			if err != nil {
				return fmt.Errorf("failed to load profile: %w", err)
			}

			var me meResult
			if err := resp.Decode(&me); err != nil {
				return err
			}

			if output == "json" {
				return printJSON(me)
			}
			printMeText(&me)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

// ProfileSetCmd updates profile fields. Fields without a flag keep their
// current value.
func ProfileSetCmd() *cobra.Command {
	var fullName, companyName, companyDescription, country, telephone, output string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := client.Get("/profile", nil)
			if err != nil {
				return fmt.Errorf("failed to load profile: %w", err)
			}
			var current profileResult
			if err := resp.Decode(&current); err != nil {
				return err
			}
			if current.CPVCodes == nil {
				current.CPVCodes = []string{}
			}

			flags := cmd.Flags()
			if flags.Changed("full-name") {
				current.FullName = fullName
			}
			if flags.Changed("company") {
				current.CompanyName = companyName
			}
			if flags.Changed("description") {
				current.CompanyDescription = companyDescription
			}
			if flags.Changed("country") {
				current.Country = country
			}
			if flags.Changed("telephone") {
				current.Telephone = telephone
			}
			current.ID = ""
			current.Email = ""

			resp, err = client.Put("/profile", current)
			if err != nil {
				return fmt.Errorf("failed to save profile: %w", err)
			}

			var saved profileResult
			if err := resp.Decode(&saved); err != nil {
				return err
			}
			if output == "json" {
				return printJSON(saved)
			}
			fmt.Println("Profile saved")
			printProfileText(&saved)
			return nil
		},
	}

	cmd.Flags().StringVar(&fullName, "full-name", "", "Full name")
	cmd.Flags().StringVar(&companyName, "company", "", "Company name")
	cmd.Flags().StringVar(&companyDescription, "description", "", "Company description")
	cmd.Flags().StringVar(&country, "country", "", "Country")
	cmd.Flags().StringVar(&telephone, "telephone", "", "Telephone")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func printMeText(me *meResult) {
	fmt.Printf("Email: %s\n", me.User.Email)
	if me.Trial != nil {
		if me.Trial.Active {
			fmt.Printf("Trial: %d day(s) left (ends %s)\n", me.Trial.DaysRemaining, me.Trial.EndsAt)
		} else {
			fmt.Printf("Trial: ended %s\n", me.Trial.EndsAt)
		}
	}
	if me.Profile == nil {
		fmt.Println("\nNo profile yet, run 'tendersync profile set' to create one")
		return
	}
	fmt.Println()
	printProfileText(me.Profile)
}

func printProfileText(p *profileResult) {
	fmt.Printf("Name: %s\n", p.FullName)
	fmt.Printf("Company: %s\n", p.CompanyName)
	if p.CompanyDescription != "" {
		fmt.Printf("Description: %s\n", p.CompanyDescription)
	}
	fmt.Printf("Country: %s\n", p.Country)
	fmt.Printf("Telephone: %s\n", p.Telephone)
	fmt.Printf("CPV codes: %d\n", len(p.CPVCodes))
	for _, code := range p.CPVCodes {
		fmt.Printf("  %s\n", code)
	}
}
