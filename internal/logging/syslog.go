// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"log/syslog"

	"grimm.is/fastpattern/internal/errors"
)

// SyslogConfig configures forwarding of log lines to a remote syslog server.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // "udp" or "tcp"
	Tag      string
	Facility syslog.Priority
}

// DefaultSyslogConfig returns a disabled syslog configuration with the
// compiler's defaults filled in.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "flywall",
		Facility: syslog.LOG_LOCAL0,
	}
}

// NewSyslogWriter dials cfg.Host and returns a syslog.Writer usable with
// Logger.AddWriter. Missing Port/Protocol/Tag are defaulted the same way
// DefaultSyslogConfig sets them.
func NewSyslogWriter(cfg SyslogConfig) (*syslog.Writer, error) {
	if cfg.Host == "" {
		return nil, errors.New(errors.KindValidation, "syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "flywall"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	w, err := syslog.Dial(cfg.Protocol, addr, cfg.Facility, cfg.Tag)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to dial syslog server")
	}
	return w, nil
}
