// Package template extracts and substitutes {{ key }} placeholders in
// JSON-shaped configurations.
package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/protocol"
)

// ErrKeyCollision is returned when substituted object keys render to the
// same name, which would drop fields from the configuration.
var ErrKeyCollision = errors.New("substituted keys collide")

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_$][A-Za-z0-9_$.\[\]-]*)\s*\}\}`)

// ExtractPlaceholders returns the sorted, distinct placeholder keys found
// anywhere in the serialized config.
func ExtractPlaceholders(config any) []string {
	return ExtractPlaceholdersWithLogger(config, slog.Default())
}

func ExtractPlaceholdersWithLogger(config any, logger *slog.Logger) []string {
	raw, err := marshal(config)
	if err != nil {
		logger.Error("Failed to serialize configuration for placeholder extraction", "error", err)

		return []string{}
	}

	seen := make(map[string]struct{})
	for _, match := range placeholderPattern.FindAllSubmatch(raw, -1) {
		seen[string(match[1])] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// MergeKeys returns the sorted union of key sets.
func MergeKeys(sets ...[]string) []string {
	seen := make(map[string]struct{})

	for _, set := range sets {
		for _, key := range set {
			seen[key] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Substitute returns a copy of config where every placeholder is replaced by
// its value. Values are escaped as JSON string content, so they cannot change
// the structure of the config. Keys without a value render as "".
func Substitute[T any](config T, values map[string]string) (T, error) {
	var result T

	raw, err := marshal(config)
	if err != nil {
		return result, fmt.Errorf("failed to serialize configuration: %w", err)
	}

	var replaceErr error

	rendered := placeholderPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		key := string(placeholderPattern.FindSubmatch(match)[1])

		escaped, err := escape(values[key])
		if err != nil {
			replaceErr = err

			return match
		}

		return escaped
	})
	if replaceErr != nil {
		return result, fmt.Errorf("failed to escape placeholder value: %w", replaceErr)
	}

	if err := checkFieldCount(raw, rendered); err != nil {
		return result, err
	}

	if err := json.Unmarshal(rendered, &result); err != nil {
		return result, fmt.Errorf("failed to decode substituted configuration: %w", err)
	}

	return result, nil
}

// checkFieldCount fails when rendering merged object keys.
func checkFieldCount(raw, rendered []byte) error {
	var before, after any

	if err := json.Unmarshal(raw, &before); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := json.Unmarshal(rendered, &after); err != nil {
		return fmt.Errorf("failed to decode substituted configuration: %w", err)
	}

	if fieldCount(before) != fieldCount(after) {
		return ErrKeyCollision
	}

	return nil
}

func fieldCount(v any) int {
	switch node := v.(type) {
	case map[string]any:
		n := len(node)
		for _, child := range node {
			n += fieldCount(child)
		}

		return n
	case []any:
		n := 0
		for _, child := range node {
			n += fieldCount(child)
		}

		return n
	default:
		return 0
	}
}

// SubstituteConfiguration substitutes placeholders in a configuration tree.
func SubstituteConfiguration(config models.Configuration, values map[string]string) (models.Configuration, error) {
	if config == nil {
		return nil, nil
	}

	return Substitute(config, values)
}

// ParamsToMap turns runtime params into a lookup map. The first occurrence of
// a key wins. A null value fails the whole request.
func ParamsToMap(params []models.Param) (map[string]string, error) {
	values := make(map[string]string, len(params))

	for _, param := range params {
		if param.Value == nil {
			return nil, protocol.NewArgumentError(
				protocol.CodeActionRunKeyValueInvalid,
				fmt.Sprintf("value for key '%s' must not be null", param.Key),
			)
		}

		if _, exists := values[param.Key]; exists {
			continue
		}

		values[param.Key] = *param.Value
	}

	return values, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// escape renders s as the inside of a JSON string literal.
func escape(s string) ([]byte, error) {
	quoted, err := marshal(s)
	if err != nil {
		return nil, err
	}

	return []byte(strings.TrimSuffix(strings.TrimPrefix(string(quoted), `"`), `"`)), nil
}
