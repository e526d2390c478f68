// Package config handles loading and validating Foyer Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (the operator JWT secret, the device token pepper)
//     should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The operator JWT secret must be shared with the staff portal that
//     issues operator tokens
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Property.Name)
package config
