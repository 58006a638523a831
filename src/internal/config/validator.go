package config

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates a single-plugin network configuration.
func (c *NetworkConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return convertValidatorErrors(err, "", c.Type)
	}
	return nil
}

// Validate validates a configuration list and every plugin entry in it.
func (l *ConfigList) Validate() error {
	var validationErrors ValidationErrors

	if err := validate.Struct(l); err != nil {
		validationErrors = append(validationErrors, convertValidatorErrors(err, "", l.Name)...)
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}
	return nil
}

// Validate validates the dataplane daemon configuration.
func (c *DataplaneConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return convertValidatorErrors(err, "", "dataplane")
	}
	return nil
}

func convertValidatorErrors(err error, fieldPrefix string, itemName string) ValidationErrors {
	var validationErrors ValidationErrors

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		for _, e := range validatorErrs {
			fieldPath := fieldPrefix
			if name := fieldName(e.Namespace()); name != "" {
				if fieldPrefix != "" {
					fieldPath = fieldPrefix + "." + name
				} else {
					fieldPath = name
				}
			}

			validationErrors = append(validationErrors, ValidationError{
				ItemName:  itemName,
				FieldPath: fieldPath,
				Message:   getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

// fieldName turns a validator namespace such as
// "NetworkConfig.PluginConfig.dns.search[0]" into "dns.search.0".
func fieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 0 {
		parts = parts[1:]
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "PluginConfig" {
			continue
		}
		p = strings.ReplaceAll(p, "[", ".")
		p = strings.ReplaceAll(p, "]", "")
		out = append(out, p)
	}
	return strings.Join(out, ".")
}
