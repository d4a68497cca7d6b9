package ssoconf

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher decides whether a login attribute (username or email)
// matches a social auth mapping rule.
type Matcher interface {
	Match(value string) bool
}

type literalMatcher struct {
	value string
}

func (m literalMatcher) Match(value string) bool { return m.value == value }

type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) Match(value string) bool { return m.re.MatchString(value) }

type matchAll struct{ allow bool }

func (m matchAll) Match(string) bool { return m.allow }

// ParseMatcher accepts the string-or-regex union used throughout the
// social auth maps: a plain string matches literally, while
// "/pattern/flags" compiles to a regular expression. Supported flags
// are i (case-insensitive) and m (multiline).
func ParseMatcher(raw string) (Matcher, error) {
	if len(raw) < 2 || !strings.HasPrefix(raw, "/") {
		return literalMatcher{value: raw}, nil
	}
	end := strings.LastIndex(raw, "/")
	if end == 0 {
		return literalMatcher{value: raw}, nil
	}
	pattern, flags := raw[1:end], raw[end+1:]
	var prefix string
	for _, flag := range flags {
		switch flag {
		case 'i':
			prefix += "i"
		case 'm':
			prefix += "m"
		default:
			return nil, fieldErr("", "invalid_regex_flag", "unsupported regex flag %q in %q", string(flag), raw).OrNil()
		}
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fieldErr("", "invalid_regex", "invalid regular expression %q: %v", raw, err).OrNil()
	}
	return regexMatcher{re: re}, nil
}

// parseMatcherSet handles the tri-state value shared by the social
// org and team maps: true grants to everyone, false/null to no one,
// and a string or list of strings is matched against the login
// username and email.
func parseMatcherSet(path string, val any, es *FieldErrors) []Matcher {
	switch v := val.(type) {
	case bool:
		return []Matcher{matchAll{allow: v}}
	case nil:
		return []Matcher{matchAll{allow: false}}
	case string:
		m, err := ParseMatcher(v)
		if err != nil {
			es.Extend(path, err.(FieldErrors))
			return nil
		}
		return []Matcher{m}
	case []any:
		var out []Matcher
		for i, elem := range v {
			s, ok := elem.(string)
			if !ok {
				es.Add(fmt.Sprintf("%s[%d]", path, i), "type_error", "expected a string, got %T", elem)
				continue
			}
			m, err := ParseMatcher(s)
			if err != nil {
				es.Extend(fmt.Sprintf("%s[%d]", path, i), err.(FieldErrors))
				continue
			}
			out = append(out, m)
		}
		return out
	default:
		es.Add(path, "type_error", "expected true, false, null, a string or a list of strings")
		return nil
	}
}

// SocialOrganizationMapEntry controls organization membership granted
// during a social auth login.
type SocialOrganizationMapEntry struct {
	Admins       []Matcher
	Users        []Matcher
	RemoveAdmins bool
	RemoveUsers  bool
}

// SocialTeamMapEntry controls team membership granted during a social
// auth login.
type SocialTeamMapEntry struct {
	Organization string
	Users        []Matcher
	Remove       bool
}

// ParseSocialOrganizationMap validates an organization name -> entry dict
func ParseSocialOrganizationMap(raw map[string]any) (map[string]*SocialOrganizationMapEntry, error) {
	var es FieldErrors
	out := make(map[string]*SocialOrganizationMapEntry, len(raw))
	for org, rawEntry := range raw {
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			es.Add(org, "type_error", "organization map entry must be a dict")
			continue
		}
		parsed := &SocialOrganizationMapEntry{}
		for key, val := range entry {
			switch key {
			case "admins":
				parsed.Admins = parseMatcherSet(org+".admins", val, &es)
			case "users":
				parsed.Users = parseMatcherSet(org+".users", val, &es)
			case "remove_admins":
				parsed.RemoveAdmins, _ = val.(bool)
			case "remove_users":
				parsed.RemoveUsers, _ = val.(bool)
			default:
				es.Add(org, "invalid_keys", "invalid key(s) for organization map: %s", key)
			}
		}
		out[org] = parsed
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseSocialTeamMap validates a team name -> entry dict. Every team
// must name its organization.
func ParseSocialTeamMap(raw map[string]any) (map[string]*SocialTeamMapEntry, error) {
	var es FieldErrors
	out := make(map[string]*SocialTeamMapEntry, len(raw))
	for team, rawEntry := range raw {
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			es.Add(team, "type_error", "team map entry must be a dict")
			continue
		}
		parsed := &SocialTeamMapEntry{}
		for key, val := range entry {
			switch key {
			case "organization":
				parsed.Organization, _ = val.(string)
			case "users":
				parsed.Users = parseMatcherSet(team+".users", val, &es)
			case "remove":
				parsed.Remove, _ = val.(bool)
			default:
				es.Add(team, "invalid_keys", "invalid key(s) for team map: %s", key)
			}
		}
		if parsed.Organization == "" {
			es.Add(team, "missing_keys", "missing required key for team map: organization")
		}
		out[team] = parsed
	}
	if err := es.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}
