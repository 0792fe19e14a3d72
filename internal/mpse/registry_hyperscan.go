//go:build cgo && hyperscan

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mpse

import "grimm.is/fastpattern/internal/logging"

func newExtra(name string, logger *logging.Logger) (Api, error) {
	if name == "hyperscan" {
		return NewHyperscanApi(logger), nil
	}
	return nil, unknownApi(name)
}
