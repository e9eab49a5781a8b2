// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/modkit/modkit/pkg/version"
)

// checkerKeys are the manifest keys that may carry a checker URL, in priority order.
var checkerKeys = []string{"masterVersionFile", "checkerURL", "versionChecker"}

// Parse decodes a mod manifest. The id and version fields are required;
// a missing or invalid required field yields a *ParseError naming it.
func Parse(data []byte) (*Descriptor, error) {
	tree, err := decodeTree(data)
	if err != nil {
		return nil, err
	}

	rawID, ok := lookup(tree, "id")
	if !ok {
		return nil, missingField("id")
	}
	idStr, ok := scalarString(rawID)
	if !ok {
		return nil, invalidField("id", "must be a string")
	}
	id := ModID(strings.TrimSpace(idStr))
	if err := id.Validate(); err != nil {
		return nil, &ParseError{Field: "id", Cause: err}
	}

	rawVersion, ok := lookup(tree, "version")
	if !ok {
		return nil, missingField("version")
	}
	v, ok := versionValue(rawVersion)
	if !ok {
		return nil, invalidField("version", `must be a string or {major, minor, patch} object; quote numeric versions such as "1.10"`)
	}
	if v.IsZero() {
		return nil, invalidField("version", "empty")
	}

	d := &Descriptor{
		Version:         v,
		Name:            optionalString(tree, "name"),
		Author:          optionalString(tree, "author"),
		Description:     optionalString(tree, "description"),
		Utility:         optionalBool(tree, "utility"),
		TotalConversion: optionalBool(tree, "totalConversion"),
	}
	d.Identity = NewIdentity(id, d.Name)

	if raw, ok := lookup(tree, "gameVersion"); ok {
		s, _ := scalarString(raw)
		req, err := ParseGameVersionReq(s)
		if err != nil {
			return nil, &ParseError{Field: "gameVersion", Cause: err}
		}
		d.GameVersion = req
	}

	deps, err := parseDependencies(tree)
	if err != nil {
		return nil, err
	}
	d.Dependencies = deps

	if raw, ok := lookup(tree, "jars"); ok {
		if list, ok := raw.([]any); ok {
			for _, item := range list {
				if s, ok := scalarString(item); ok && s != "" {
					d.Jars = append(d.Jars, s)
				}
			}
		}
	}

	for _, key := range checkerKeys {
		if url := optionalString(tree, key); url != "" {
			d.Checker = &Checker{URL: url, DirectDownloadURL: optionalString(tree, "directDownloadURL")}
			break
		}
	}

	return d, nil
}

func parseDependencies(tree map[string]any) ([]Dependency, error) {
	raw, ok := lookup(tree, "dependencies")
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, invalidField("dependencies", "must be a list")
	}

	deps := make([]Dependency, 0, len(list))
	for i, item := range list {
		field := fmt.Sprintf("dependencies[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, invalidField(field, "must be an object")
		}
		rawID, ok := lookup(obj, "id")
		if !ok {
			return nil, missingField(field + ".id")
		}
		idStr, _ := scalarString(rawID)
		id := ModID(strings.TrimSpace(idStr))
		if err := id.Validate(); err != nil {
			return nil, &ParseError{Field: field + ".id", Cause: err}
		}

		dep := Dependency{ID: id, Name: optionalString(obj, "name")}
		if rawV, ok := lookup(obj, "version"); ok && rawV != nil {
			v, ok := versionValue(rawV)
			if !ok {
				return nil, invalidField(field+".version", "must be a string or {major, minor, patch} object")
			}
			dep.MinVersion = v
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// lookup finds key in obj, falling back to a case-insensitive match.
func lookup(obj map[string]any, key string) (any, bool) {
	if v, ok := obj[key]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func optionalString(obj map[string]any, key string) string {
	raw, ok := lookup(obj, key)
	if !ok {
		return ""
	}
	s, _ := scalarString(raw)
	return strings.TrimSpace(s)
}

func optionalBool(obj map[string]any, key string) bool {
	raw, ok := lookup(obj, key)
	if !ok {
		return false
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return false
	}
}

// scalarString renders strings and numbers as text.
func scalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

// versionValue accepts "1.2.3" or {major: 1, minor: 2, patch: "3a"}. A bare
// number is refused: it decodes as a float, so 1.10 would read back as 1.1.
func versionValue(raw any) (version.Version, bool) {
	if s, ok := raw.(string); ok {
		return version.Parse(s), true
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return version.Version{}, false
	}

	var parts []string
	for _, key := range []string{"major", "minor", "patch"} {
		v, ok := lookup(obj, key)
		if !ok {
			break
		}
		s, ok := scalarString(v)
		if !ok || strings.TrimSpace(s) == "" {
			break
		}
		parts = append(parts, strings.TrimSpace(s))
	}
	if len(parts) == 0 {
		return version.Version{}, false
	}
	return version.Parse(strings.Join(parts, ".")), true
}
