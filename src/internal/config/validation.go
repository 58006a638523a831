package config

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/miekg/dns"
	"github.com/valyala/fasttemplate"
)

var cniVersionRegexp = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// getValidationMessage returns a human-readable message for a validation error
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "ip":
		return "must be a valid IP address"
	case "excludesall":
		return fmt.Sprintf("must not contain any of %q", e.Param())
	case "cidrv4":
		return "must be an IPv4 network in CIDR notation"
	case "hostname_port":
		return "must be in format 'host:port'"
	case "cni_version":
		return "must be a version in the form MAJOR.MINOR.PATCH"
	case "dnsname":
		return "must be a valid DNS domain name"
	case "forward_rule":
		return "must be a valid rule template referencing {{" + TmplHostIfname + "}}"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// ValidationError represents a single validation error with context
type ValidationError struct {
	ItemName  string // For plugin lists: the type of the plugin entry
	FieldPath string // Dot-notation field path (e.g., "ipam.type", "dns.search.0")
	Message   string // Human-readable error message
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("validation failed with %d error(s):\n", len(ve)))
	for i, err := range ve {
		if err.ItemName != "" {
			sb.WriteString(fmt.Sprintf("  %d. [%s] %s: %s\n", i+1, err.ItemName, err.FieldPath, err.Message))
		} else {
			sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.FieldPath, err.Message))
		}
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validators
	if err := validate.RegisterValidation("cni_version", validateCNIVersion); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("dnsname", validateDNSName); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("forward_rule", validateForwardRule); err != nil {
		panic(err)
	}

	// Field names come from the json tag for network configs and the toml tag for the daemon config
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"json", "toml"} {
			name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return ""
	})
}

func validateCNIVersion(fl validator.FieldLevel) bool {
	return cniVersionRegexp.MatchString(fl.Field().String())
}

func validateDNSName(fl validator.FieldLevel) bool {
	_, ok := dns.IsDomainName(fl.Field().String())
	return ok
}

// validateForwardRule checks the template is balanced and references the host interface.
func validateForwardRule(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if _, err := fasttemplate.NewTemplate(value, "{{", "}}"); err != nil {
		return false
	}
	return strings.Contains(value, "{{"+TmplHostIfname+"}}")
}
