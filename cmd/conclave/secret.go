package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"

	"conclave/internal/config"
	"conclave/internal/store"
	"conclave/internal/vault"
)

func runSecret(args []string) error {
	if len(args) == 0 {
		printSecretUsage()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Vault.Passphrase == "" {
		return fmt.Errorf("CONCLAVE_VAULT_PASSPHRASE environment variable is required")
	}
	v := vault.New(cfg.Vault.Passphrase)

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	switch args[0] {
	case "list":
		return secretList(db)
	case "set":
		return secretSet(db, v, args[1:])
	case "get":
		return secretGet(db, v, args[1:])
	case "delete":
		return secretDelete(db, args[1:])
	default:
		printSecretUsage()
		return fmt.Errorf("unknown secret command: %s", args[0])
	}
}

func printSecretUsage() {
	fmt.Fprintf(os.Stderr, `Usage: conclave secret <command>

Commands:
  list                                         List secrets (metadata only)
  set <name> --value <str> [--description <text>]   Store a provider credential
  get <name>                                   Retrieve and unseal a secret
  delete <name>                                Delete a secret

Environment:
  CONCLAVE_VAULT_PASSPHRASE                    Required. Sealing passphrase.
`)
}

func secretList(db *store.Store) error {
	secrets, err := db.ListSecrets()
	if err != nil {
		return err
	}
	if len(secrets) == 0 {
		fmt.Println("No secrets stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION\tUPDATED")
	for _, s := range secrets {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Description, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func secretSet(db *store.Store, v *vault.Vault, args []string) error {
	if len(args) < 3 || args[1] != "--value" {
		return fmt.Errorf("usage: conclave secret set <name> --value <string> [--description <text>]")
	}
	name := args[0]
	value := []byte(args[2])

	description := ""
	for i := 3; i < len(args)-1; i++ {
		if args[i] == "--description" {
			description = args[i+1]
			break
		}
	}

	sealed, err := v.Seal(value)
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}

	sec := &store.Secret{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Sealed:      sealed,
	}
	if existing, _ := db.GetSecret(name); existing != nil {
		sec.ID = existing.ID
		if description == "" {
			sec.Description = existing.Description
		}
	}

	if err := db.SaveSecret(sec); err != nil {
		return err
	}
	fmt.Printf("Secret %q saved\n", name)
	return nil
}

func secretGet(db *store.Store, v *vault.Vault, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: conclave secret get <name>")
	}

	sec, err := db.GetSecret(args[0])
	if err != nil {
		return err
	}
	if sec == nil {
		return fmt.Errorf("secret %q not found", args[0])
	}

	plaintext, err := v.Open(sec.Sealed)
	if err != nil {
		return fmt.Errorf("unseal: %w", err)
	}

	fmt.Print(string(plaintext))
	if len(plaintext) > 0 && plaintext[len(plaintext)-1] != '\n' {
		fmt.Println()
	}
	return nil
}

func secretDelete(db *store.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: conclave secret delete <name>")
	}
	if err := db.DeleteSecret(args[0]); err != nil {
		return err
	}
	fmt.Printf("Secret %q deleted\n", args[0])
	return nil
}
