package polygonutil

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddresses splits raw on commas, semicolons and whitespace. Duplicates
// are dropped, first occurrence wins. Blank input yields nil.
func ParseAddresses(raw string) ([]common.Address, error) {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\r' || r == '\t'
	})
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]common.Address, 0, len(parts))
	for _, p := range parts {
		if !common.IsHexAddress(p) {
			return nil, fmt.Errorf("invalid hex address %q", p)
		}
		a := common.HexToAddress(p)
		if !containsAddress(out, a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// MergeAddresses appends extra to base, skipping zero and repeated entries.
func MergeAddresses(base []common.Address, extra ...common.Address) []common.Address {
	out := make([]common.Address, 0, len(base)+len(extra))
	for _, a := range append(append([]common.Address(nil), base...), extra...) {
		if (a != common.Address{}) && !containsAddress(out, a) {
			out = append(out, a)
		}
	}
	return out
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
