// Package vault provides a small HashiCorp Vault client used to read API key
// records from a KV v2 secrets engine.
//
//	client, err := vault.New(&vault.Config{
//	    Address: "https://vault.example.com:8200",
//	    Token:   os.Getenv("VAULT_TOKEN"),
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	data, err := client.KV().Read(ctx, "secret", "keygate/keys/<hash>")
//
// Missing and soft-deleted secrets are reported as ErrSecretNotFound.
package vault
