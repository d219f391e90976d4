package main

import (
	"fmt"
	"io"

	"github.com/mdp/qrterminal/v3"
	"github.com/pquerna/otp/totp"
	"github.com/spf13/cobra"
)

const totpIssuer = "replee"

func newTOTPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totp",
		Short: "Manage the SSH second factor",
	}
	var account string
	var noQR bool
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a TOTP secret for ssh.totp_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, url, err := generateTOTP(account)
			if err != nil {
				return err
			}
			printTOTPEnrollment(cmd.OutOrStdout(), secret, url, !noQR)
			return nil
		},
	}
	generate.Flags().StringVar(&account, "account", "replee", "account name shown in the authenticator app")
	generate.Flags().BoolVar(&noQR, "no-qr", false, "do not print the QR code")
	cmd.AddCommand(generate)
	return cmd
}

func generateTOTP(account string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: account,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func printTOTPEnrollment(w io.Writer, secret, url string, qr bool) {
	_, _ = fmt.Fprintf(w, "totp_secret: %s\n", secret)
	_, _ = fmt.Fprintf(w, "otpauth_url: %s\n", url)
	if qr {
		_, _ = fmt.Fprintln(w, "totp_qr:")
		qrterminal.GenerateHalfBlock(url, qrterminal.L, w)
	}
	_, _ = fmt.Fprintln(w, "set ssh.totp_secret in the config file to require the code on login")
}
