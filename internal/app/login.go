package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// promptForCode shows the OAuth URL and collects the authorization code
// from the redirect the user lands on after consenting in the browser.
func promptForCode(authURL string) (string, error) {
	fmt.Println("Open this URL in your browser and sign in:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()

	var code string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Authorization code").
				Description("Paste the code from the redirect URL (the ?code= parameter)").
				Value(&code).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("code must not be empty")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("reading authorization code: %w", err)
	}

	return strings.TrimSpace(code), nil
}
