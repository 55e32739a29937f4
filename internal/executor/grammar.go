package executor

import (
	"fmt"
	"strings"

	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
	"github.com/R3E-Network/starlane/internal/kind"
	"github.com/R3E-Network/starlane/internal/particle"
	"github.com/R3E-Network/starlane/internal/point"
	"github.com/R3E-Network/starlane/internal/registry"
)

// RawCommand is the unparsed text accepted at the Cmd<RawCommand> route: one
// or more semicolon-terminated statements.
type RawCommand struct {
	Line string
}

// ParseRawCommand splits raw.Line into statements (brace-aware, so a ';'
// inside an Install block does not end the statement) and parses each one.
func ParseRawCommand(raw RawCommand) ([]Command, error) {
	var out []Command
	for _, stmt := range splitStatements(raw.Line) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		cmd, err := ParseLine(stmt)
		if err != nil {
			return nil, err
		}
		out = append(out, cmd)
	}
	return out, nil
}

func splitStatements(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ';':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// ParseLine parses one statement (head keyword + arguments, optionally
// terminated with ";") into a dispatch-ready Command.
func ParseLine(line string) (Command, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimSuffix(line, ";")
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, slerrors.Spatial("empty command line")
	}

	head, rest := splitHead(line)
	switch strings.ToLower(head) {
	case "create":
		return parseCreate(rest)
	case "select":
		return parseSelect(rest)
	case "delete":
		return parseDelete(rest)
	case "set":
		return parseSet(rest)
	case "read":
		return parseRead(rest)
	default:
		return nil, slerrors.Spatial(fmt.Sprintf("unrecognized command head %q", head))
	}
}

func splitHead(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

// splitTopLevelBlock returns the text before the first top-level "{...}"
// block, the (trimmed) contents inside it, and whether a block was found.
func splitTopLevelBlock(s string) (before, inner string, found bool) {
	idx := strings.IndexByte(s, '{')
	if idx < 0 {
		return s, "", false
	}
	depth := 0
	for i := idx; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1 : i]), true
			}
		}
	}
	return s, "", false
}

// parseNamedBlocks scans s for a sequence of top-level `Name { ... }` groups
// (e.g. `Set { +k=v }  Install { ... }`), keyed by lowercased name.
func parseNamedBlocks(s string) (map[string]string, error) {
	out := map[string]string{}
	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		for i < len(s) && s[i] != ' ' && s[i] != '{' {
			i++
		}
		name := s[start:i]
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) || s[i] != '{' {
			return nil, slerrors.Spatial(fmt.Sprintf("expected '{' after %q", name))
		}
		braceStart := i
		depth := 0
		for ; i < len(s); i++ {
			if s[i] == '{' {
				depth++
			}
			if s[i] == '}' {
				depth--
				if depth == 0 {
					i++
					break
				}
			}
		}
		out[strings.ToLower(name)] = strings.TrimSpace(s[braceStart+1 : i-1])
	}
	return out, nil
}

func parseCreate(rest string) (Command, error) {
	head, block, hasBlock := splitTopLevelBlock(rest)
	fields := strings.Fields(head)
	if len(fields) < 2 {
		return nil, slerrors.Spatial("create requires a kind and a point template")
	}

	kt, err := parseKindTemplate(fields[0])
	if err != nil {
		return nil, err
	}
	parent, seg, err := parsePointTemplate(strings.Join(fields[1:], ""))
	if err != nil {
		return nil, err
	}

	cmd := CreateCommand{Parent: parent, Segment: seg, Kind: kt, Strategy: particle.StrategyCreate}
	if !hasBlock {
		return cmd, nil
	}

	blocks, err := parseNamedBlocks(block)
	if err != nil {
		return nil, err
	}
	if setBlock, ok := blocks["set"]; ok {
		mods, err := parseSetMods(setBlock)
		if err != nil {
			return nil, err
		}
		cmd.Properties = propsFromMods(mods)
	}
	if _, ok := blocks["install"]; ok {
		cmd.HasSubstance = true
	}
	return cmd, nil
}

// parseKindTemplate parses "Base", "Base<Variant>", "Base<Variant<Nested>>",
// each optionally followed by "(vendor:product:variant:version)".
func parseKindTemplate(s string) (kind.Template, error) {
	body := s
	specificPart := ""
	if i := strings.IndexByte(s, '('); i >= 0 {
		j := strings.LastIndexByte(s, ')')
		if j < i {
			return kind.Template{}, slerrors.Spatial(fmt.Sprintf("malformed kind specific %q", s))
		}
		specificPart = s[i+1 : j]
		body = s[:i]
	}

	base := body
	subPart := ""
	if i := strings.IndexByte(body, '<'); i >= 0 {
		j := strings.LastIndexByte(body, '>')
		if j < i {
			return kind.Template{}, slerrors.Spatial(fmt.Sprintf("malformed kind sub-type %q", s))
		}
		base = body[:i]
		subPart = body[i+1 : j]
	}

	t := kind.Template{Base: kind.Base(base)}
	if subPart != "" {
		variant, nested := subPart, ""
		if k := strings.IndexByte(subPart, '<'); k >= 0 {
			if l := strings.LastIndexByte(subPart, '>'); l > k {
				variant = subPart[:k]
				nested = subPart[k+1 : l]
			}
		}
		t.Sub = &kind.Sub{Variant: variant, Nested: nested}
	}
	if specificPart != "" {
		parts := strings.SplitN(specificPart, ":", 4)
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		t.Specific = &kind.Specific{Vendor: parts[0], Product: parts[1], Variant: parts[2], Version: parts[3]}
	}
	return t, nil
}

// parsePointTemplate splits a create target into its parent and its child
// PointSegTemplate. "%" is a valid point.Point segment character, so the full
// string parses as an ordinary Point first; the last segment is then
// classified as exact or "%"-pattern.
func parsePointTemplate(s string) (point.Point, PointSegTemplate, error) {
	s = strings.TrimSpace(s)
	if s == point.Root {
		return point.Point{}, PointSegTemplate{Kind: SegRoot}, nil
	}
	full, err := point.New(s)
	if err != nil {
		return point.Point{}, PointSegTemplate{}, err
	}
	parent, ok := full.Parent()
	if !ok {
		return point.Point{}, PointSegTemplate{}, slerrors.Spatial("create point template must have a parent")
	}
	last := full.Segment()
	if strings.Contains(last, "%") {
		return parent, PointSegTemplate{Kind: SegPattern, Value: last}, nil
	}
	return parent, PointSegTemplate{Kind: SegExact, Value: last}, nil
}

func parseSetMods(s string) ([]particle.PropertyMod, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	mods := make([]particle.PropertyMod, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		switch {
		case strings.HasPrefix(p, "+"):
			kv := strings.SplitN(p[1:], "=", 2)
			if len(kv) != 2 {
				return nil, slerrors.Spatial(fmt.Sprintf("malformed property set %q", p))
			}
			mods = append(mods, particle.PropertyMod{Key: strings.TrimSpace(kv[0]), Value: strings.TrimSpace(kv[1])})
		case strings.HasPrefix(p, "-"):
			mods = append(mods, particle.PropertyMod{Key: strings.TrimSpace(p[1:]), UnSet: true})
		default:
			return nil, slerrors.Spatial(fmt.Sprintf("malformed property mod %q", p))
		}
	}
	return mods, nil
}

func propsFromMods(mods []particle.PropertyMod) particle.Properties {
	out := make(particle.Properties, len(mods))
	for _, m := range mods {
		if m.UnSet {
			continue
		}
		out[m.Key] = particle.Property{Value: m.Value, Locked: m.Lock}
	}
	return out
}

func parseSelect(rest string) (Command, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, slerrors.Spatial("select requires a selector")
	}
	pattern := ""
	rootStr := rest
	switch {
	case strings.HasSuffix(rest, ":**"):
		pattern = "**"
		rootStr = strings.TrimSuffix(rest, ":**")
	case rest == "**":
		pattern = "**"
		rootStr = point.Root
	}
	root, err := point.New(rootStr)
	if err != nil {
		return nil, err
	}
	return SelectCommand{Select: registry.Select{Root: root, Pattern: pattern}}, nil
}

func parseDelete(rest string) (Command, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, slerrors.Spatial("delete requires a point")
	}
	cascade := len(fields) > 1 && strings.EqualFold(fields[1], "cascade")
	p, err := point.New(fields[0])
	if err != nil {
		return nil, err
	}
	return DeleteCommand{Delete: registry.Delete{Point: p, Cascade: cascade}}, nil
}

func parseSet(rest string) (Command, error) {
	head, block, found := splitTopLevelBlock(rest)
	if !found {
		return nil, slerrors.Spatial("set requires a property { ... } block")
	}
	p, err := point.New(strings.TrimSpace(head))
	if err != nil {
		return nil, err
	}
	mods, err := parseSetMods(block)
	if err != nil {
		return nil, err
	}
	return SetCommand{Point: p, Mods: mods}, nil
}

func parseRead(rest string) (Command, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, slerrors.Spatial("read requires a point")
	}
	p, err := point.New(rest)
	if err != nil {
		return nil, err
	}
	return ReadCommand{Point: p}, nil
}
