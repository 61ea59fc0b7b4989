package davclient

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// RFC 4918 multistatus, restricted to the properties the file manager
// renders.
type multistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href      string     `xml:"href"`
	Propstats []propstat `xml:"propstat"`
}

type propstat struct {
	Status string  `xml:"status"`
	Prop   davProp `xml:"prop"`
}

type davProp struct {
	DisplayName   string       `xml:"displayname"`
	ResourceType  resourceType `xml:"resourcetype"`
	LastModified  string       `xml:"getlastmodified"`
	ContentLength string       `xml:"getcontentlength"`
}

type resourceType struct {
	Collection *struct{} `xml:"collection"`
}

// parseMultistatus decodes a PROPFIND response body into entries, skipping
// the response for the requested collection itself.
func parseMultistatus(r io.Reader, self string) ([]Entry, error) {
	var ms multistatus
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		href := unescapeHref(resp.Href)
		if path.Clean(href) == path.Clean(self) {
			continue
		}

		prop, ok := okProp(resp.Propstats)
		if !ok {
			continue
		}

		e := Entry{
			Name: prop.DisplayName,
			Type: TypeFile,
		}
		if e.Name == "" {
			e.Name = path.Base(strings.TrimSuffix(href, "/"))
		}
		if prop.ResourceType.Collection != nil {
			e.Type = TypeDirectory
		}
		if prop.ContentLength != "" {
			if n, err := strconv.ParseInt(prop.ContentLength, 10, 64); err == nil {
				e.Size = n
			}
		}
		if prop.LastModified != "" {
			if t, err := http.ParseTime(prop.LastModified); err == nil {
				e.Modified = t
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// okProp returns the property set reported with a 200 status.
func okProp(stats []propstat) (davProp, bool) {
	for _, ps := range stats {
		if strings.Contains(ps.Status, "200") {
			return ps.Prop, true
		}
	}
	return davProp{}, false
}

func unescapeHref(href string) string {
	if u, err := url.Parse(href); err == nil {
		return u.Path
	}
	return href
}
