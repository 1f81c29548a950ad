package auth

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ExtractClaimString extracts a string claim from JWT claims
func ExtractClaimString(claims map[string]any, claimField string) (string, error) {
	rawValue, ok := claims[claimField]
	if !ok {
		return "", fmt.Errorf("claim field %s not found", claimField)
	}

	value, ok := rawValue.(string)
	if !ok {
		return "", fmt.Errorf("claim field %s is not a string", claimField)
	}

	if value == "" {
		return "", fmt.Errorf("claim field %s is empty", claimField)
	}

	return value, nil
}

// optionalClaimString returns the claim value or "" when absent or mistyped.
func optionalClaimString(claims map[string]any, claimField string) string {
	value, _ := claims[claimField].(string)
	return value
}

// ExtractMetadata reads the metadata claim. Providers emit it either as a JSON
// object or as a JSON-encoded string. A missing claim yields nil.
func ExtractMetadata(claims map[string]any, claimField string) (map[string]any, error) {
	rawValue, ok := claims[claimField]
	if !ok || rawValue == nil {
		return nil, nil
	}

	if encoded, isString := rawValue.(string); isString {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
			return nil, fmt.Errorf("claim field %s is not a JSON object: %w", claimField, err)
		}
		return decoded, nil
	}

	var metadata map[string]any
	if err := mapstructure.Decode(rawValue, &metadata); err != nil {
		return nil, fmt.Errorf("claim field %s is not an object: %w", claimField, err)
	}
	return metadata, nil
}

// IdentityFromClaims maps provider token claims onto an Identity. The
// subject is required; email, name and metadata are optional.
func IdentityFromClaims(claims map[string]any, metadataClaim string) (Identity, error) {
	subject, err := ExtractClaimString(claims, "sub")
	if err != nil {
		return Identity{}, err
	}

	metadata, err := ExtractMetadata(claims, metadataClaim)
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		ID:       subject,
		Email:    optionalClaimString(claims, "email"),
		Name:     optionalClaimString(claims, "name"),
		Metadata: metadata,
	}, nil
}
