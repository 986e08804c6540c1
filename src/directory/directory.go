// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package directory loads the resolver directory from a YAML file.
//
// Example file:
//
//	resolvers:
//	  - name: Telekom
//	    address: 192.0.2.10
//	    isp: Telekom
//	    enforces_blocking: true
//	    detection_method: CNAME_MARKER
//	  - name: Quad9
//	    address: 9.9.9.9
//	    transport: tcp
package directory

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/H0llyW00dzZ/blockwatch/src/blockwatch"
)

var (
	// ErrEmpty is returned when a directory lists no resolvers.
	ErrEmpty = errors.New("directory: no resolvers defined")

	// ErrDuplicate is returned when two resolvers share an address and
	// transport.
	ErrDuplicate = errors.New("directory: duplicate resolver")
)

type file struct {
	Resolvers []entry `yaml:"resolvers"`
}

type entry struct {
	Name             string `yaml:"name"`
	Address          string `yaml:"address"`
	Transport        string `yaml:"transport"`
	ISP              string `yaml:"isp"`
	EnforcesBlocking bool   `yaml:"enforces_blocking"`
	DetectionMethod  string `yaml:"detection_method"`
}

// Load reads and validates the resolver directory at path.
func Load(path string) ([]blockwatch.Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: reading %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes and validates a resolver directory. Unknown fields are
// rejected.
func Parse(r io.Reader) ([]blockwatch.Resolver, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("directory: decoding: %w", err)
	}
	if len(f.Resolvers) == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[string]string, len(f.Resolvers))
	resolvers := make([]blockwatch.Resolver, 0, len(f.Resolvers))
	for i, e := range f.Resolvers {
		r := blockwatch.Resolver{
			Name:             e.Name,
			Address:          e.Address,
			Transport:        blockwatch.Transport(e.Transport),
			ISP:              e.ISP,
			EnforcesBlocking: e.EnforcesBlocking,
			DetectionMethod:  blockwatch.DetectionMethod(e.DetectionMethod),
		}
		if r.Name == "" {
			r.Name = r.Address
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("directory: resolver %d: %w", i, err)
		}

		key := fmt.Sprintf("%s://%s", cmp.Or(r.Transport, blockwatch.TransportUDP), r.HostPort())
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %q and %q both use %s", ErrDuplicate, prev, r.Name, key)
		}
		seen[key] = r.Name

		resolvers = append(resolvers, r)
	}

	return resolvers, nil
}
