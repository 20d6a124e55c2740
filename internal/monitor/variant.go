//go:build linux

package monitor

import (
	"strings"

	"github.com/genricoloni/marquee/internal/domain"
	"github.com/godbus/dbus/v5"
)

// convertMetadata turns an MPRIS metadata dictionary into RawMetadata.
// Keys lose their namespace ("xesam:title" becomes "title").
func convertMetadata(meta map[string]dbus.Variant) domain.RawMetadata {
	raw := make(domain.RawMetadata, len(meta))
	for key, v := range meta {
		if i := strings.IndexByte(key, ':'); i >= 0 {
			key = key[i+1:]
		}
		raw[key] = convertValue(v)
	}
	return raw
}

func convertValue(v dbus.Variant) domain.RawValue {
	switch val := v.Value().(type) {
	case string:
		return domain.StringValue(val)
	case dbus.ObjectPath:
		return domain.StringValue(string(val))
	case []string:
		return domain.StringListValue(val)
	case []interface{}:
		// some players send arrays of variants instead of as
		list := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return domain.UnknownValue()
			}
			list = append(list, s)
		}
		return domain.StringListValue(list)
	case []dbus.Variant:
		list := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.Value().(string)
			if !ok {
				return domain.UnknownValue()
			}
			list = append(list, s)
		}
		return domain.StringListValue(list)
	default:
		return domain.UnknownValue()
	}
}
