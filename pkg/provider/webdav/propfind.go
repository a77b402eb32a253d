package webdav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:"><D:prop><D:resourcetype/><D:getcontentlength/><D:getetag/><D:getlastmodified/></D:prop></D:propfind>`

type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"DAV: response"`
}

type response struct {
	Href      string     `xml:"DAV: href"`
	Propstats []propstat `xml:"DAV: propstat"`
}

type propstat struct {
	Prop   prop   `xml:"DAV: prop"`
	Status string `xml:"DAV: status"`
}

type prop struct {
	ResourceType  resourceType `xml:"DAV: resourcetype"`
	ContentLength string       `xml:"DAV: getcontentlength"`
	ETag          string       `xml:"DAV: getetag"`
	LastModified  string       `xml:"DAV: getlastmodified"`
}

type resourceType struct {
	Collection *struct{} `xml:"DAV: collection"`
}

// resource is one parsed multistatus response
type resource struct {
	href       string
	collection bool
	size       int64
	etag       string
	modTime    time.Time
}

func parseMultistatus(body []byte) ([]resource, error) {
	var ms multistatus
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&ms); err != nil {
		return nil, fmt.Errorf("decode multistatus: %w", err)
	}

	resources := make([]resource, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		if r.Href == "" {
			return nil, fmt.Errorf("multistatus response without href")
		}
		res := resource{href: strings.TrimSpace(r.Href), size: -1}
		for _, ps := range r.Propstats {
			// properties the server does not have come back in a 404 propstat
			if ps.Status != "" && !strings.Contains(ps.Status, " 200") {
				continue
			}
			if ps.Prop.ResourceType.Collection != nil {
				res.collection = true
			}
			if ps.Prop.ContentLength != "" {
				if n, err := strconv.ParseInt(strings.TrimSpace(ps.Prop.ContentLength), 10, 64); err == nil {
					res.size = n
				}
			}
			if ps.Prop.ETag != "" {
				res.etag = strings.Trim(strings.TrimSpace(ps.Prop.ETag), `"`)
			}
			if ps.Prop.LastModified != "" {
				if t, err := http.ParseTime(strings.TrimSpace(ps.Prop.LastModified)); err == nil {
					res.modTime = t
				}
			}
		}
		resources = append(resources, res)
	}
	return resources, nil
}
