// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mpse

import (
	"testing"

	"grimm.is/fastpattern/internal/errors"
)

func TestNewEmptyNameReturnsNilApi(t *testing.T) {
	api, err := New("", nil)
	if err != nil || api != nil {
		t.Fatalf("expected (nil, nil) for an empty name, got (%v, %v)", api, err)
	}
}

func TestNewLiteral(t *testing.T) {
	api, err := New("ac_literal", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := api.(*LiteralApi); !ok {
		t.Fatalf("expected a *LiteralApi, got %T", api)
	}
}

func TestNewRegexpFallback(t *testing.T) {
	api, err := New("regexp_fallback", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := api.(*RegexpFallbackApi); !ok {
		t.Fatalf("expected a *RegexpFallbackApi, got %T", api)
	}
}

func TestNewUnknownNameRejected(t *testing.T) {
	_, err := New("bogus", nil)
	if errors.GetKind(err) != errors.KindValidation {
		t.Fatalf("expected KindValidation, got %v", err)
	}
}
