//go:build !(cgo && hyperscan)

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mpse

import "grimm.is/fastpattern/internal/logging"

// newExtra is the non-hyperscan build's fallback: "hyperscan" is a
// recognized but unavailable name in this build, distinct from a typo.
func newExtra(name string, logger *logging.Logger) (Api, error) {
	if name == "hyperscan" {
		return nil, unknownApi(name + " (built without cgo+hyperscan tags)")
	}
	return nil, unknownApi(name)
}
