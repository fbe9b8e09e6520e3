package cfn

import "strings"

// Pseudo parameters.
const (
	AWSRegion    = "AWS::Region"
	AWSAccountID = "AWS::AccountId"
	AWSStackName = "AWS::StackName"
)

func Ref(id string) Props {
	return Props{"Ref": id}
}

func GetAtt(id, attr string) Props {
	return Props{"Fn::GetAtt": []string{id, attr}}
}

func Sub(s string) Props {
	return Props{"Fn::Sub": s}
}

func Join(sep string, values ...any) Props {
	return Props{"Fn::Join": []any{sep, values}}
}

// References returns every logical id referenced through Ref, Fn::GetAtt or a
// ${Id} / ${Id.Attr} placeholder inside Fn::Sub. Pseudo parameters are skipped.
func References(v any) []string {
	seen := make(map[string]struct{})
	collectRefs(v, seen)
	return SortedKeys(seen)
}

func collectRefs(v any, seen map[string]struct{}) {
	switch val := v.(type) {
	case Props:
		collectMapRefs(val, seen)
	case map[string]any:
		collectMapRefs(val, seen)
	case []any:
		for _, e := range val {
			collectRefs(e, seen)
		}
	case []Props:
		for _, e := range val {
			collectRefs(e, seen)
		}
	}
}

func collectMapRefs(m map[string]any, seen map[string]struct{}) {
	if len(m) == 1 {
		if id, ok := m["Ref"].(string); ok {
			addRef(id, seen)
			return
		}
		if parts, ok := m["Fn::GetAtt"].([]string); ok && len(parts) == 2 {
			addRef(parts[0], seen)
			return
		}
		if s, ok := m["Fn::Sub"].(string); ok {
			for _, id := range subVariables(s) {
				addRef(id, seen)
			}
			return
		}
	}
	for _, k := range SortedKeys(m) {
		collectRefs(m[k], seen)
	}
}

func addRef(id string, seen map[string]struct{}) {
	if strings.HasPrefix(id, "AWS::") {
		return
	}
	seen[id] = struct{}{}
}

// subVariables extracts the logical ids named by ${...} placeholders.
// Literal ${!...} escapes are ignored.
func subVariables(s string) []string {
	var ids []string
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			return ids
		}
		s = s[start+2:]
		end := strings.Index(s, "}")
		if end < 0 {
			return ids
		}
		name := s[:end]
		s = s[end+1:]
		if strings.HasPrefix(name, "!") {
			continue
		}
		if dot := strings.Index(name, "."); dot >= 0 {
			name = name[:dot]
		}
		ids = append(ids, name)
	}
}
