package domain

import (
	"encoding/json"
	"fmt"

	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"github.com/smallbiznis/hmsinsure/internal/snapshotdiff"
)

// Record fields used as diff keys.
const (
	KeyItemCode  = "ItemCode"
	KeyPriceCode = "PriceCode"
)

// PriceRequestType is the response log request type of the price list call.
func PriceRequestType(p Provider) string {
	if p == NHIF {
		return logdomain.RequestGetPricePackageWithExclusion
	}
	return logdomain.RequestGetPricePackage
}

// PackageKey is the field that identifies a price package row of the provider.
func PackageKey(p Provider) string {
	if p == NHIF {
		return KeyPriceCode
	}
	return KeyItemCode
}

// DecodePricePayload splits a raw price list response into package and
// excluded service records.
func DecodePricePayload(p Provider, body []byte) (packages, excluded []snapshotdiff.Record, err error) {
	switch p {
	case Jubilee:
		var payload struct {
			Description json.RawMessage `json:"Description"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, nil, fmt.Errorf("decode %s price list: %w", p, err)
		}
		packages, err = snapshotdiff.DecodeRecords(payload.Description)
		if err != nil {
			return nil, nil, fmt.Errorf("decode %s price list: %w", p, err)
		}
		return packages, nil, nil
	case NHIF:
		var payload struct {
			PricePackage     json.RawMessage `json:"PricePackage"`
			ExcludedServices json.RawMessage `json:"ExcludedServices"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, nil, fmt.Errorf("decode %s price package: %w", p, err)
		}
		if packages, err = snapshotdiff.DecodeRecords(payload.PricePackage); err != nil {
			return nil, nil, fmt.Errorf("decode %s price package: %w", p, err)
		}
		if excluded, err = snapshotdiff.DecodeRecords(payload.ExcludedServices); err != nil {
			return nil, nil, fmt.Errorf("decode %s excluded services: %w", p, err)
		}
		return packages, excluded, nil
	default:
		return nil, nil, ErrUnknownProvider
	}
}
