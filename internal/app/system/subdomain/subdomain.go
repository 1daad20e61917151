// Package subdomain maps a request hostname to a tenant slug.
//
// Resolution is a pure function of the hostname and the static tables held by
// Resolver. It performs no I/O, so it is safe to call on every request and in
// any order.
package subdomain

import (
	"fmt"
	"net"
	"strings"
)

// Admin is the sentinel slug for the platform administration site.
const Admin = "admin"

// reserved labels never resolve to a tenant in the generic fallback.
var reserved = map[string]struct{}{
	"www":  {},
	"api":  {},
	"mail": {},
	"ftp":  {},
}

// Resolver holds the host routing scheme.
type Resolver struct {
	Apex          string // production apex, e.g. "pic2data.fi"
	DevRoot       string // reserved development root label, e.g. "pic2data"
	DevSuffix     string // local development suffix, e.g. ".local"
	PreviewSuffix string // preview hosting suffix, e.g. ".vercel.app"

	// Aliases remaps legacy or marketing labels under the apex to tenant slugs.
	Aliases map[string]string
	// PreviewDeployments maps preview deployment names to tenant slugs.
	PreviewDeployments map[string]string
}

// Resolve returns the tenant slug for host, Admin for the admin site, or ""
// when the host belongs to the platform default site.
//
// Rules, first match wins:
//  1. strip the port
//  2. apex or www.apex → ""
//  3. *.apex → leftmost label (www → ""), remapped through Aliases
//  4. *.<DevRoot><DevSuffix> → leftmost label ("" when it is DevRoot itself)
//  5. *<PreviewSuffix> → PreviewDeployments entry, else the label before its first hyphen
//  6. three or more labels and a non-reserved leftmost label → that label
func (res Resolver) Resolve(host string) string {
	host = normalizeHost(host)
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	apex := strings.ToLower(strings.TrimPrefix(res.Apex, "."))

	if apex != "" {
		if host == apex || host == "www."+apex {
			return ""
		}
		if strings.HasSuffix(host, "."+apex) {
			label := leftmost(host)
			if label == "www" {
				return ""
			}
			if mapped, ok := res.Aliases[label]; ok {
				return mapped
			}
			return label
		}
	}

	labels := strings.Split(host, ".")

	if res.DevSuffix != "" && res.DevRoot != "" && strings.HasSuffix(host, normSuffix(res.DevSuffix)) &&
		len(labels) >= 2 && labels[1] == res.DevRoot {
		if labels[0] == res.DevRoot {
			return ""
		}
		return labels[0]
	}

	if res.PreviewSuffix != "" && strings.HasSuffix(host, normSuffix(res.PreviewSuffix)) {
		label := labels[0]
		if slug, ok := res.PreviewDeployments[label]; ok {
			return slug
		}
		if i := strings.Index(label, "-"); i >= 0 {
			return label[:i]
		}
		return label
	}

	if len(labels) >= 3 {
		if _, bad := reserved[labels[0]]; !bad && labels[0] != "" {
			return labels[0]
		}
	}
	return ""
}

// ParseTable parses "key=value,key2=value2" into a lower-cased map.
// Empty input yields an empty map.
func ParseTable(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.TrimSpace(v))
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("subdomain: malformed table entry %q (want key=value)", pair)
		}
		out[k] = v
	}
	return out, nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[:i], ":") {
		// "host:" with an empty port
		host = host[:i]
	}
	host = strings.Trim(host, "[]")
	return strings.TrimSuffix(host, ".")
}

func leftmost(host string) string {
	if i := strings.Index(host, "."); i >= 0 {
		return host[:i]
	}
	return host
}

func normSuffix(s string) string {
	s = strings.ToLower(s)
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	return s
}
