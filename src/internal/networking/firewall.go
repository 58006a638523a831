package networking

import (
	"fmt"
	"strings"

	"github.com/coreos/go-iptables/iptables"
	"github.com/valyala/fasttemplate"

	"github.com/redhat-et/patu/src/internal/config"
	"github.com/redhat-et/patu/src/internal/log"
)

const (
	forwardTable = "filter"
	forwardChain = "FORWARD"
)

// IPTables is the subset of *iptables.IPTables used by Firewall.
type IPTables interface {
	Exists(table, chain string, rulespec ...string) (bool, error)
	Append(table, chain string, rulespec ...string) error
	Delete(table, chain string, rulespec ...string) error
}

// RuleVars are the values substituted into the forward rule template.
type RuleVars struct {
	HostIfname  string
	ContainerID string
	Ifname      string
}

// Firewall installs the per-attachment FORWARD accept rule.
type Firewall struct {
	ipt  IPTables
	rule string
}

// NewFirewall opens the IPv4 iptables backend. rule is a template using the
// {{host_ifname}}, {{container_id}} and {{ifname}} variables.
func NewFirewall(rule string) (*Firewall, error) {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize iptables: %w", err)
	}
	return NewFirewallWith(ipt, rule), nil
}

// NewFirewallWith builds a Firewall on top of an existing backend.
func NewFirewallWith(ipt IPTables, rule string) *Firewall {
	if rule == "" {
		rule = config.DefaultForwardRule
	}
	return &Firewall{ipt: ipt, rule: rule}
}

// RuleSpec expands the template for vars and splits it into iptables arguments.
func (f *Firewall) RuleSpec(vars RuleVars) []string {
	return strings.Fields(processRulePart(f.rule, vars))
}

func processRulePart(template string, vars RuleVars) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	t := fasttemplate.New(template, "{{", "}}")
	return t.ExecuteString(map[string]interface{}{
		config.TmplHostIfname:  vars.HostIfname,
		config.TmplContainerID: vars.ContainerID,
		config.TmplIfname:      vars.Ifname,
	})
}

// AllowForward appends the rule to filter/FORWARD unless it is already present.
func (f *Firewall) AllowForward(vars RuleVars) error {
	spec := f.RuleSpec(vars)

	exists, err := f.ipt.Exists(forwardTable, forwardChain, spec...)
	if err != nil {
		return fmt.Errorf("failed to check iptables rule %v: %w", spec, err)
	}
	if exists {
		log.Debugf("iptables rule [%s %s %v] already present", forwardTable, forwardChain, spec)
		return nil
	}

	log.Infof("Adding iptables rule [%s %s %v]", forwardTable, forwardChain, spec)
	if err := f.ipt.Append(forwardTable, forwardChain, spec...); err != nil {
		return fmt.Errorf("failed to add iptables rule %v: %w", spec, err)
	}
	return nil
}

// RemoveForward deletes the rule if it exists.
func (f *Firewall) RemoveForward(vars RuleVars) error {
	spec := f.RuleSpec(vars)

	exists, err := f.ipt.Exists(forwardTable, forwardChain, spec...)
	if err != nil {
		return fmt.Errorf("failed to check iptables rule %v: %w", spec, err)
	}
	if !exists {
		return nil
	}

	log.Infof("Deleting iptables rule [%s %s %v]", forwardTable, forwardChain, spec)
	if err := f.ipt.Delete(forwardTable, forwardChain, spec...); err != nil {
		return fmt.Errorf("failed to delete iptables rule %v: %w", spec, err)
	}
	return nil
}
