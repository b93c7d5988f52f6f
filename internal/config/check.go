package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Problem describes one issue found while checking a config file.
type Problem struct {
	Key        string
	Message    string
	Deprecated bool
}

func (p Problem) String() string {
	return p.Message
}

// Check reads the config file at path and reports deprecated and unknown keys.
func Check(path string) ([]Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return CheckBytes(data)
}

func CheckBytes(data []byte) ([]Problem, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var problems []Problem
	doc := documentMapping(&root)
	if doc != nil {
		if hasKey(doc, "redis", "channel") {
			problems = append(problems, Problem{
				Key:        "redis.channel",
				Message:    `"redis.channel" (singular) is deprecated, use "redis.channels" (list) instead`,
				Deprecated: true,
			})
		}
		if hasKey(doc, "processing", "processor") {
			problems = append(problems, Problem{
				Key:        "processing.processor",
				Message:    `"processing.processor" is deprecated, use the root-level "processors" list instead`,
				Deprecated: true,
			})
		}
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)

	var cfg Config
	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		var typeErr *yaml.TypeError
		if !errors.As(err, &typeErr) {
			return problems, fmt.Errorf("decode config: %w", err)
		}
		for _, msg := range typeErr.Errors {
			problems = append(problems, Problem{Message: strings.TrimSpace(msg)})
		}
	}

	return problems, nil
}

func documentMapping(root *yaml.Node) *yaml.Node {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil
	}
	return root.Content[0]
}

func hasKey(mapping *yaml.Node, path ...string) bool {
	node := mapping
	for _, key := range path {
		if node == nil || node.Kind != yaml.MappingNode {
			return false
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return false
		}
		node = next
	}
	return true
}
