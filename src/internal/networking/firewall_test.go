package networking

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type fakeIPTables struct {
	rules     map[string]bool
	existsErr error
	appends   int
	deletes   int
}

func newFakeIPTables() *fakeIPTables {
	return &fakeIPTables{rules: map[string]bool{}}
}

func ruleKey(table, chain string, spec []string) string {
	return table + "/" + chain + ":" + strings.Join(spec, " ")
}

func (f *fakeIPTables) Exists(table, chain string, rulespec ...string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.rules[ruleKey(table, chain, rulespec)], nil
}

func (f *fakeIPTables) Append(table, chain string, rulespec ...string) error {
	f.appends++
	f.rules[ruleKey(table, chain, rulespec)] = true
	return nil
}

func (f *fakeIPTables) Delete(table, chain string, rulespec ...string) error {
	f.deletes++
	delete(f.rules, ruleKey(table, chain, rulespec))
	return nil
}

func TestProcessRulePart_TemplateSubstitution(t *testing.T) {
	vars := RuleVars{HostIfname: "veth0a1b2c3d", ContainerID: "abc123", Ifname: "eth0"}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{name: "No template variables", template: "-j ACCEPT", expected: "-j ACCEPT"},
		{name: "Host interface", template: "-i {{host_ifname}} -j ACCEPT", expected: "-i veth0a1b2c3d -j ACCEPT"},
		{
			name:     "All variables",
			template: "-i {{host_ifname}} -m comment --comment {{container_id}}/{{ifname}} -j ACCEPT",
			expected: "-i veth0a1b2c3d -m comment --comment abc123/eth0 -j ACCEPT",
		},
		{name: "Unknown variable is replaced with empty string", template: "-i {{host_ifname}} {{unknown}}-j ACCEPT", expected: "-i veth0a1b2c3d -j ACCEPT"},
		{name: "Empty template", template: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := processRulePart(tt.template, vars)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestProcessRulePart_MalformedTemplate(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for malformed template")
		}
	}()

	processRulePart("-i {{host_ifname} -j ACCEPT", RuleVars{HostIfname: "veth0"})
}

func TestFirewall_RuleSpec(t *testing.T) {
	fw := NewFirewallWith(newFakeIPTables(), "")

	got := fw.RuleSpec(RuleVars{HostIfname: "vethdeadbeef"})
	want := []string{"-i", "vethdeadbeef", "-j", "ACCEPT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RuleSpec() = %v, want %v", got, want)
	}
}

func TestFirewall_AllowForward(t *testing.T) {
	ipt := newFakeIPTables()
	fw := NewFirewallWith(ipt, "")
	vars := RuleVars{HostIfname: "vethdeadbeef"}

	if err := fw.AllowForward(vars); err != nil {
		t.Fatalf("AllowForward() error = %v", err)
	}
	if !ipt.rules["filter/FORWARD:-i vethdeadbeef -j ACCEPT"] {
		t.Errorf("rule not installed, have %v", ipt.rules)
	}

	if err := fw.AllowForward(vars); err != nil {
		t.Fatalf("second AllowForward() error = %v", err)
	}
	if ipt.appends != 1 {
		t.Errorf("expected a single append, got %d", ipt.appends)
	}
}

func TestFirewall_RemoveForward(t *testing.T) {
	ipt := newFakeIPTables()
	fw := NewFirewallWith(ipt, "")
	vars := RuleVars{HostIfname: "vethdeadbeef"}

	if err := fw.RemoveForward(vars); err != nil {
		t.Fatalf("RemoveForward() on missing rule error = %v", err)
	}
	if ipt.deletes != 0 {
		t.Errorf("missing rule must not be deleted")
	}

	_ = fw.AllowForward(vars)
	if err := fw.RemoveForward(vars); err != nil {
		t.Fatalf("RemoveForward() error = %v", err)
	}
	if len(ipt.rules) != 0 || ipt.deletes != 1 {
		t.Errorf("rule not removed, have %v", ipt.rules)
	}
}

func TestFirewall_ExistsError(t *testing.T) {
	ipt := newFakeIPTables()
	ipt.existsErr = errors.New("iptables lock held")
	fw := NewFirewallWith(ipt, "")

	if err := fw.AllowForward(RuleVars{HostIfname: "veth0"}); err == nil {
		t.Error("expected error from AllowForward")
	}
	if err := fw.RemoveForward(RuleVars{HostIfname: "veth0"}); err == nil {
		t.Error("expected error from RemoveForward")
	}
	if ipt.appends != 0 || ipt.deletes != 0 {
		t.Errorf("no changes expected when the lookup fails")
	}
}
