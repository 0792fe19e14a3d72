// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mpse

import (
	"grimm.is/fastpattern/internal/errors"
	"grimm.is/fastpattern/internal/logging"
)

// New resolves a configured search_api name (CompilerConfig.SearchApi /
// OffloadSearchApi) to a concrete Api. An empty name means "no engine
// configured" and returns (nil, nil) — callers use this for an unset
// offload slot.
func New(name string, logger *logging.Logger) (Api, error) {
	switch name {
	case "":
		return nil, nil
	case "ac_literal":
		return NewLiteralApi(logger), nil
	case "regexp_fallback":
		return NewRegexpFallbackApi(logger), nil
	default:
		return newExtra(name, logger)
	}
}

func unknownApi(name string) error {
	return errors.Errorf(errors.KindValidation, "unknown search_api %q", name)
}
