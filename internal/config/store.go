package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GeometryStore persists a tag geometry back into the configuration source.
type GeometryStore interface {
	SaveGeometry(module, tag, geom string) error
}

// FileStore writes geometries into the YAML file at Path.
type FileStore struct {
	Path string
	// OnWrite, when set, receives the bytes written to Path.
	OnWrite func(data []byte)
}

// SaveGeometry implements GeometryStore.
func (s FileStore) SaveGeometry(module, tag, geom string) error {
	data, err := rewriteGeometry(s.Path, module, tag, geom)
	if err != nil {
		return err
	}
	if s.OnWrite != nil {
		s.OnWrite(data)
	}
	return nil
}

// SaveGeometry rewrites the geom key of module.tag in the file at path,
// leaving the rest of the document and its comments in place.
func SaveGeometry(path, module, tag, geom string) error {
	_, err := rewriteGeometry(path, module, tag, geom)
	return err
}

func rewriteGeometry(path, module, tag, geom string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("config %s is empty", path)
	}
	modNode := mappingValue(doc.Content[0], module)
	if modNode == nil {
		return nil, fmt.Errorf("module %q not found in %s", module, path)
	}
	tagNode := mappingValue(modNode, tag)
	if tagNode == nil || tagNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("tag %q not found in module %q", tag, module)
	}
	if geomNode := mappingValue(tagNode, "geom"); geomNode != nil {
		geomNode.Kind = yaml.ScalarNode
		geomNode.Tag = "!!str"
		geomNode.Value = geom
	} else {
		tagNode.Content = append(tagNode.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "geom"},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: geom},
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".negwm-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
