package model

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// IDGenerator derives node identifiers from content. Every id is a pure
// function of the node's content and its ancestor chain, so re-extracting
// identical input yields identical ids and writes become upserts instead of
// duplicates. Non-default tenants are folded into the hash input so two
// tenants never share an id.
type IDGenerator struct {
	tenant TenantID
}

// NewIDGenerator returns an id generator scoped to the given tenant.
func NewIDGenerator(tenant TenantID) *IDGenerator {
	return &IDGenerator{tenant: tenant}
}

func hashHex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SourceID derives the id of a source document from its full text and its
// canonical metadata string. Changing either produces a new source id and
// therefore an entirely new subgraph.
func (g *IDGenerator) SourceID(text string, metadataStr string) string {
	return fmt.Sprintf("src::%s:%s", hashHex(text)[:8], hashHex(metadataStr)[:4])
}

// ChunkID derives a chunk id from its parent source id and the chunk text.
func (g *IDGenerator) ChunkID(sourceID string, text string, metadataStr string) string {
	return fmt.Sprintf("%s:%s", sourceID, hashHex(text+metadataStr)[:8])
}

// NodeID derives an id for topic, statement, fact and entity nodes from the
// node type and one or two identity components. Components are lowercased
// with spaces collapsed to underscores before hashing so that formatting
// noise never splits a node identity.
func (g *IDGenerator) NodeID(nodeType string, v1 string, v2 string) string {
	normalize := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), " ", "_")
	}
	var hashable string
	if v2 != "" {
		hashable = fmt.Sprintf("%s::%s::%s", strings.ToLower(nodeType), normalize(v1), normalize(v2))
	} else {
		hashable = fmt.Sprintf("%s::%s", strings.ToLower(nodeType), normalize(v1))
	}
	return hashHex(g.tenant.FormatHashable(hashable))
}

// RewriteID applies the tenant namespace to an externally visible id.
func (g *IDGenerator) RewriteID(id string) string {
	return g.tenant.RewriteID(id)
}

// Tenant returns the tenant this generator is scoped to.
func (g *IDGenerator) Tenant() TenantID {
	return g.tenant
}
