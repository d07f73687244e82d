// SPDX-License-Identifier: AGPL-3.0-or-later
package models

import "net/url"

// MaskFieldKey is the JSON key under which a mask descriptor is nested inside the
// object that replaces a redacted subtree.
const MaskFieldKey = "trellis-mask"

// MaskVersion is the only descriptor version this core understands.
const MaskVersion = "1.0"

// HashInfo is the output of the canonical hash function: an algorithm tag and the
// digest's string encoding.
type HashInfo struct {
	Alg  string `json:"alg"`
	Hash string `json:"hash"`
}

// Equal reports whether two HashInfo values commit to the same content.
func (h HashInfo) Equal(other HashInfo) bool {
	return h.Alg == other.Alg && h.Hash == other.Hash
}

// MaskDescriptor is the literal shape stored under the "trellis-mask" key.
type MaskDescriptor struct {
	Version  string   `json:"version"`
	HashInfo HashInfo `json:"hashinfo"`
	URL      string   `json:"url"`
	NonceURL string   `json:"nonceurl"`
}

// ToJSON renders the descriptor as the wrapped object that replaces a masked subtree.
func (d MaskDescriptor) ToJSON() Resource {
	return Resource{
		MaskFieldKey: Resource{
			"version": d.Version,
			"hashinfo": Resource{
				"alg":  d.HashInfo.Alg,
				"hash": d.HashInfo.Hash,
			},
			"url":      d.URL,
			"nonceurl": d.NonceURL,
		},
	}
}

// IsMask reports whether v is a mask: v is an object and either v itself or
// v["trellis-mask"] carries all four required fields with the right shape.
func IsMask(v JSON) bool {
	_, ok := AsDescriptor(v)
	return ok
}

// AsDescriptor extracts a MaskDescriptor from either the wrapping object or the bare
// inner descriptor. It returns ok=false if any required field is missing or malformed.
func AsDescriptor(v JSON) (MaskDescriptor, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return MaskDescriptor{}, false
	}

	inner := obj
	if wrapped, present := obj[MaskFieldKey]; present {
		innerObj, ok := wrapped.(map[string]interface{})
		if !ok {
			return MaskDescriptor{}, false
		}
		inner = innerObj
	}

	version, ok := inner["version"].(string)
	if !ok || version == "" {
		return MaskDescriptor{}, false
	}

	hashinfoRaw, ok := inner["hashinfo"].(map[string]interface{})
	if !ok {
		return MaskDescriptor{}, false
	}
	alg, ok := hashinfoRaw["alg"].(string)
	if !ok || alg == "" {
		return MaskDescriptor{}, false
	}
	hash, ok := hashinfoRaw["hash"].(string)
	if !ok || hash == "" {
		return MaskDescriptor{}, false
	}

	maskURL, ok := inner["url"].(string)
	if !ok || maskURL == "" {
		return MaskDescriptor{}, false
	}

	nonceURL, ok := inner["nonceurl"].(string)
	if !ok || nonceURL == "" {
		return MaskDescriptor{}, false
	}

	return MaskDescriptor{
		Version:  version,
		HashInfo: HashInfo{Alg: alg, Hash: hash},
		URL:      maskURL,
		NonceURL: nonceURL,
	}, true
}

// DomainForMask parses the descriptor's url and returns scheme://host[:port], or
// ok=false if the url is malformed.
func DomainForMask(d MaskDescriptor) (string, bool) {
	return DomainFromURL(d.URL)
}

// DomainFromURL returns scheme://host[:port] for an absolute URL, or ok=false if the
// URL cannot be parsed or has no host.
func DomainFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}
