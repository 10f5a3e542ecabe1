// Copyright 2024 The bootverify authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keys

import (
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// keyFile is the on-disk key table format:
//
//	keys:
//	  - name: dev-a
//	    pem: |
//	      -----BEGIN PUBLIC KEY-----
//	      ...
//	  - name: dev-b
//	    der: <base64>
type keyFile struct {
	Keys []keyEntry `yaml:"keys"`
}

type keyEntry struct {
	Name string `yaml:"name"`
	PEM  string `yaml:"pem"`
	DER  string `yaml:"der"`
}

// LoadFile reads a YAML key table file and builds a Table from it. Each
// entry carries either a PEM "PUBLIC KEY" block or base64 DER, not both.
func LoadFile(path string) (*Table, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %v", path, err)
	}
	return Parse(buf)
}

// Parse builds a Table from the contents of a YAML key table file.
func Parse(buf []byte) (*Table, error) {
	var kf keyFile
	if err := yaml.Unmarshal(buf, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %v", err)
	}
	if len(kf.Keys) == 0 {
		return nil, fmt.Errorf("key file holds no keys")
	}

	var der [][]byte
	for i, e := range kf.Keys {
		name := e.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		switch {
		case e.PEM != "" && e.DER != "":
			return nil, fmt.Errorf("key %s: both pem and der given", name)
		case e.PEM != "":
			block, _ := pem.Decode([]byte(e.PEM))
			if block == nil || block.Type != "PUBLIC KEY" {
				return nil, fmt.Errorf("key %s: no PUBLIC KEY PEM block", name)
			}
			der = append(der, block.Bytes)
		case e.DER != "":
			b, err := base64.StdEncoding.DecodeString(e.DER)
			if err != nil {
				return nil, fmt.Errorf("key %s: bad base64 DER: %v", name, err)
			}
			der = append(der, b)
		default:
			return nil, fmt.Errorf("key %s: neither pem nor der given", name)
		}
	}

	return NewTable(der)
}
