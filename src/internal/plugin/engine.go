package plugin

import (
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/containernetworking/cni/pkg/types"
	current "github.com/containernetworking/cni/pkg/types/100"
	"github.com/containernetworking/cni/pkg/version"

	"github.com/redhat-et/patu/src/internal/config"
	"github.com/redhat-et/patu/src/internal/domain"
	cnierrors "github.com/redhat-et/patu/src/internal/errors"
	"github.com/redhat-et/patu/src/internal/log"
	"github.com/redhat-et/patu/src/internal/networking"
	"github.com/redhat-et/patu/src/internal/utils"
)

// SupportedVersion is the only CNI specification version patu speaks.
const SupportedVersion = "1.0.0"

// Engine realizes one container attachment per call.
type Engine struct {
	deps *domain.AppDependencies
}

// NewEngine creates an engine over the given dependencies.
func NewEngine(deps *domain.AppDependencies) *Engine {
	return &Engine{deps: deps}
}

// Run executes env.Command and writes its output document to w.
// conf may be nil for VERSION.
func (e *Engine) Run(env *Environment, conf *config.NetworkConfig, w io.Writer) error {
	switch env.Command {
	case CommandVersion:
		return Version().Encode(w)
	case CommandAdd:
		result, err := e.Add(env, conf)
		if err != nil {
			return err
		}
		return printResult(w, result)
	case CommandDel:
		return e.Del(env, conf)
	case CommandCheck:
		return printResult(w, e.Check(conf))
	}
	return cnierrors.NewEnvError("CNI_COMMAND is not valid")
}

// Version returns the fixed VERSION document.
func Version() version.PluginInfo {
	return version.PluginSupports(SupportedVersion)
}

// printResult writes result converted to the supported version, the way
// types.PrintResult does for stdout.
func printResult(w io.Writer, result *current.Result) error {
	r, err := result.GetAsVersion(SupportedVersion)
	if err != nil {
		return cnierrors.Wrap(cnierrors.ErrCodeIncompatibleVersion, "failed to convert result", err)
	}
	return r.PrintTo(w)
}

// Check performs no reconciliation and returns an empty result.
func (e *Engine) Check(conf *config.NetworkConfig) *current.Result {
	return &current.Result{CNIVersion: SupportedVersion}
}

// Add allocates an address through IPAM and wires the container namespace
// to the host. When any step after the allocation fails the allocation is
// released; links created so far stay behind for a later Del to remove.
func (e *Engine) Add(env *Environment, conf *config.NetworkConfig) (*current.Result, error) {
	if err := checkVersion(conf.CNIVersion); err != nil {
		return nil, err
	}

	log.Debugf("ADD container=%s netns=%s ifname=%s", env.ContainerID, env.Netns, env.IfName)

	result, err := e.deps.IPAM().Add(conf, env.Path)
	if err != nil {
		log.Warnf("IPAM allocation failed: %v", err)
		e.releaseIPAM(env, conf)
		return nil, err
	}

	if err := e.attach(env, conf, result); err != nil {
		log.Errorf("Failed to attach container %s: %v", env.ContainerID, err)
		e.releaseIPAM(env, conf)
		return nil, err
	}

	return result, nil
}

func (e *Engine) releaseIPAM(env *Environment, conf *config.NetworkConfig) {
	if err := e.deps.IPAM().Del(conf, env.Path); err != nil {
		log.Warnf("Failed to release IPAM allocation: %v", err)
	}
}

func attachError(message string, err error) error {
	return cnierrors.NewAttachError(message, err)
}

// attach runs the kernel side of Add and merges the created interfaces into result.
func (e *Engine) attach(env *Environment, conf *config.NetworkConfig, result *current.Result) error {
	if len(result.IPs) == 0 {
		return attachError("IPAM returned no addresses", nil)
	}
	ipConf := result.IPs[0]

	containerIP := ipConf.Address.IP.To4()
	if containerIP == nil {
		return attachError("invalid address from IPAM", fmt.Errorf("address %q", ipConf.Address.String()))
	}
	gatewayIP := ipConf.Gateway.To4()
	if gatewayIP == nil {
		return attachError("IPAM returned no IPv4 gateway", fmt.Errorf("gateway %q", ipConf.Gateway))
	}

	host, err := e.deps.Netlink().Host()
	if err != nil {
		return attachError("failed to open host netlink socket", err)
	}
	defer utils.CloseOrWarn(host)

	log.Debugf("Creating gateway %s", networking.GatewayName)
	gateway, err := host.CreateGateway()
	if err != nil {
		return attachError("failed to create gateway", err)
	}
	if err := host.SetIP(gateway.Index, gatewayIP); err != nil {
		return attachError("failed to set gateway address", err)
	}

	log.Debugf("Creating veth pair for %s in %s", env.IfName, env.Netns)
	hostVeth, _, err := host.CreateVethPair(env.IfName, env.Netns, conf.EffectiveMTU())
	if err != nil {
		return attachError("failed to create veth pair", err)
	}
	if err := host.SetUp(hostVeth.Index); err != nil {
		return attachError("failed to bring up host veth", err)
	}

	container, err := e.configureContainer(env, containerIP, gatewayIP)
	if err != nil {
		return err
	}

	fw, err := e.deps.Firewall(conf.EffectiveForwardRule())
	if err != nil {
		return attachError("failed to initialize firewall", err)
	}
	if err := fw.AllowForward(ruleVars(env, hostVeth.Name)); err != nil {
		return attachError("failed to install forward rule", err)
	}

	if err := host.CreateDevRoute(hostVeth.Index, containerIP); err != nil {
		return attachError("failed to add host route to container", err)
	}

	result.Interfaces = append(result.Interfaces,
		&current.Interface{Name: gateway.Name, Mac: gateway.MAC},
		&current.Interface{Name: hostVeth.Name, Mac: hostVeth.MAC},
		&current.Interface{Name: container.Name, Mac: container.MAC, Sandbox: env.Netns},
	)
	ipConf.Interface = current.Int(len(result.Interfaces) - 1)

	if result.CNIVersion == "" {
		result.CNIVersion = conf.CNIVersion
	}
	if conf.DNS != nil && isEmptyDNS(result.DNS) {
		result.DNS = types.DNS(*conf.DNS)
	}

	log.Debugf("Attached %s (%s) to %s via %s", env.IfName, containerIP, gateway.Name, hostVeth.Name)
	return nil
}

// configureContainer addresses the container end and installs its routes.
func (e *Engine) configureContainer(env *Environment, address, gateway net.IP) (*networking.Link, error) {
	ns, err := e.deps.Netlink().InNamespace(env.Netns)
	if err != nil {
		return nil, attachError("failed to open container netlink socket", err)
	}
	defer utils.CloseOrWarn(ns)

	link, err := ns.GetLinkInfo(env.IfName)
	if err != nil {
		return nil, attachError("failed to resolve container interface", err)
	}
	if err := ns.SetIP(link.Index, address); err != nil {
		return nil, attachError("failed to set container address", err)
	}
	if err := ns.SetUp(link.Index); err != nil {
		return nil, attachError("failed to bring up container interface", err)
	}
	if err := ns.CreateDevRoute(link.Index, gateway); err != nil {
		return nil, attachError("failed to add route to gateway", err)
	}
	if err := ns.CreateDefaultRoute(gateway); err != nil {
		return nil, attachError("failed to add default route", err)
	}
	return link, nil
}

// Del removes the container interface and releases its address. It never
// fails: a missing namespace or interface means there is nothing to do.
func (e *Engine) Del(env *Environment, conf *config.NetworkConfig) error {
	log.Debugf("DEL container=%s netns=%s ifname=%s", env.ContainerID, env.Netns, env.IfName)

	ns, err := e.deps.Netlink().InNamespace(env.Netns)
	if err != nil {
		log.Warnf("Namespace %s is not available, nothing to detach: %v", env.Netns, err)
		return nil
	}
	defer utils.CloseOrWarn(ns)

	link, err := ns.GetLinkInfo(env.IfName)
	if err != nil {
		log.Warnf("Interface %s not found in %s, nothing to detach: %v", env.IfName, env.Netns, err)
		return nil
	}

	e.removeForwardRule(env, conf, link)

	if err := ns.DeleteLink(link.Index); err != nil {
		log.Warnf("Failed to delete %s: %v", env.IfName, err)
	}

	if err := e.deps.IPAM().Del(conf, env.Path); err != nil {
		log.Warnf("Failed to release IPAM allocation: %v", err)
	}
	return nil
}

// removeForwardRule locates the host end through the peer index of the
// container end and deletes its forward rule.
func (e *Engine) removeForwardRule(env *Environment, conf *config.NetworkConfig, link *networking.Link) {
	if link.ParentIndex == 0 {
		return
	}

	host, err := e.deps.Netlink().Host()
	if err != nil {
		log.Warnf("Failed to open host netlink socket: %v", err)
		return
	}
	defer utils.CloseOrWarn(host)

	hostVeth, err := host.GetLinkByIndex(link.ParentIndex)
	if err != nil {
		log.Warnf("Host end of %s not found: %v", env.IfName, err)
		return
	}
	if !strings.HasPrefix(hostVeth.Name, networking.VethPrefix) {
		log.Warnf("Peer %s of %s is not a patu veth, keeping its rules", hostVeth.Name, env.IfName)
		return
	}

	fw, err := e.deps.Firewall(conf.EffectiveForwardRule())
	if err != nil {
		log.Warnf("Failed to initialize firewall: %v", err)
		return
	}
	if err := fw.RemoveForward(ruleVars(env, hostVeth.Name)); err != nil {
		log.Warnf("Failed to remove forward rule for %s: %v", hostVeth.Name, err)
	}
}

func ruleVars(env *Environment, hostIfname string) networking.RuleVars {
	return networking.RuleVars{
		HostIfname:  hostIfname,
		ContainerID: env.ContainerID,
		Ifname:      env.IfName,
	}
}

func isEmptyDNS(dns types.DNS) bool {
	return len(dns.Nameservers) == 0 && dns.Domain == "" && len(dns.Search) == 0 && len(dns.Options) == 0
}

// checkVersion accepts configurations of the supported major.minor version.
func checkVersion(configVersion string) error {
	incompatible := cnierrors.New(cnierrors.ErrCodeIncompatibleVersion,
		fmt.Sprintf("incompatible CNI versions; config is %q, plugin supports %q", configVersion, SupportedVersion))

	major, minor, _, err := version.ParseVersion(configVersion)
	if err != nil {
		incompatible.Cause = err
		return incompatible
	}
	wantMajor, wantMinor, _, _ := version.ParseVersion(SupportedVersion)
	if major != wantMajor || minor != wantMinor {
		return incompatible
	}
	return nil
}
