// Package ipam runs the IPAM plugin named in a network configuration and
// translates its output into CNI results and patu errors.
package ipam

import (
	"errors"
	"fmt"

	"github.com/containernetworking/cni/pkg/invoke"
	"github.com/containernetworking/cni/pkg/types"
	current "github.com/containernetworking/cni/pkg/types/100"
	cniipam "github.com/containernetworking/plugins/pkg/ipam"

	"github.com/redhat-et/patu/src/internal/config"
	cnierrors "github.com/redhat-et/patu/src/internal/errors"
	"github.com/redhat-et/patu/src/internal/log"
	"github.com/redhat-et/patu/src/internal/utils"
)

const ipamErrorMessage = "IPAM Error"

// Delegate executes IPAM plugins found on the CNI search path.
//
// The plugin inherits the process environment with CNI_COMMAND overridden,
// so CNI_PATH must hold the same search path that is passed to Add and Del.
type Delegate struct {
	execAdd func(plugin string, netconf []byte) (types.Result, error)
	execDel func(plugin string, netconf []byte) error
}

// NewDelegate returns a Delegate running plugins through the CNI invoke package.
func NewDelegate() *Delegate {
	return &Delegate{
		execAdd: cniipam.ExecAdd,
		execDel: cniipam.ExecDel,
	}
}

// Add runs the plugin with CNI_COMMAND=ADD and decodes its result.
// Without an ipam section the result is empty.
func (d *Delegate) Add(conf *config.NetworkConfig, cniPath string) (*current.Result, error) {
	if conf.IPAM == nil {
		log.Debugf("No IPAM configuration")
		return &current.Result{CNIVersion: conf.CNIVersion}, nil
	}

	if err := d.lookup(conf.IPAM.Type, cniPath); err != nil {
		return nil, err
	}

	log.Debugf("Executing IPAM plugin %s (ADD)", conf.IPAM.Type)
	r, err := d.execAdd(conf.IPAM.Type, conf.Raw())
	if err != nil {
		return nil, pluginError(conf.IPAM.Type, err)
	}

	// A result without cniVersion was already given the config's version by invoke.
	result, err := current.NewResultFromResult(r)
	if err != nil {
		return nil, cnierrors.NewDelegateError(ipamErrorMessage, err)
	}
	return result, nil
}

// Del runs the plugin with CNI_COMMAND=DEL. Its output is ignored and any
// failure is reported as a generic delegate error.
func (d *Delegate) Del(conf *config.NetworkConfig, cniPath string) error {
	if conf.IPAM == nil {
		log.Debugf("No IPAM configuration")
		return nil
	}

	if err := d.lookup(conf.IPAM.Type, cniPath); err != nil {
		return err
	}

	log.Debugf("Executing IPAM plugin %s (DEL)", conf.IPAM.Type)
	if err := d.execDel(conf.IPAM.Type, conf.Raw()); err != nil {
		log.Debugf("IPAM plugin %s failed: %v", conf.IPAM.Type, err)
		return cnierrors.New(cnierrors.ErrCodeDelegate, ipamErrorMessage)
	}
	return nil
}

func (d *Delegate) lookup(name, cniPath string) error {
	path, err := invoke.FindInPath(name, utils.SearchPath(cniPath))
	if err != nil {
		return cnierrors.NewDelegateError(ipamErrorMessage, err)
	}
	log.Debugf("Resolved IPAM plugin %s to %s", name, path)
	return nil
}

// pluginError keeps the error document of a failed plugin when it carries a
// code and synthesizes a delegate error otherwise.
func pluginError(name string, err error) error {
	var cniErr *types.Error
	if errors.As(err, &cniErr) && cniErr.Code != 0 {
		return cnierrors.FromCNI(cniErr)
	}
	return cnierrors.NewDelegateError(ipamErrorMessage, fmt.Errorf("%s: %w", name, err))
}
