// ===========================================================================
// scripts/seed_demo_map — Seed a database with a ready-to-load demo mind map
//
// Usage:
//   go run ./scripts/seed_demo_map \
//       --db-path ./mindflow-demo.db \
//       --name "Distributed Systems"
//
// The demo map covers distributed-systems fundamentals with every node
// category represented, so a fresh install has something worth exploring
// before the first AI generation.
// ===========================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/mindflow/mindflow-ai/internal/graph"
	"github.com/mindflow/mindflow-ai/internal/storage"
)

// ---------------------------------------------------------------------------
// Flags
// ---------------------------------------------------------------------------

var (
	dbPath  = flag.String("db-path", "./mindflow-demo.db", "Output SQLite database path")
	mapName = flag.String("name", "Distributed Systems", "Name for the saved demo map")
	seed    = flag.Int64("seed", 42, "Random seed for position jitter")
)

// ---------------------------------------------------------------------------
// Demo content
// ---------------------------------------------------------------------------

type demoNode struct {
	id       string
	label    string
	category graph.Category
	details  string
	parent   string
}

var demoNodes = []demoNode{
	{"root", "Distributed Systems", graph.CategoryTopic,
		"Systems whose components run on networked machines and coordinate by passing messages.", ""},

	{"cap", "CAP Theorem", graph.CategoryCriticalPoint,
		"A partitioned system must choose between consistency and availability. There is no third option during a partition.", "root"},
	{"consistency", "Consistency", graph.CategoryDefinition,
		"Every read observes the most recent write or an error.", "cap"},
	{"availability", "Availability", graph.CategoryDefinition,
		"Every request receives a non-error response, without a guarantee it reflects the latest write.", "cap"},
	{"partition", "Partition Tolerance", graph.CategoryDefinition,
		"The system keeps operating despite dropped or delayed messages between nodes.", "cap"},

	{"consensus", "Consensus", graph.CategoryTopic,
		"Getting a group of unreliable machines to agree on a single value.", "root"},
	{"raft", "Raft", graph.CategoryExample,
		"Leader-based consensus protocol designed for understandability. Used by etcd and Consul.", "consensus"},
	{"paxos", "Paxos", graph.CategoryExample,
		"The classic consensus family. Correct, influential, and famously hard to implement.", "consensus"},
	{"quorum", "Quorum", graph.CategoryDefinition,
		"A majority of nodes whose agreement is sufficient to commit a decision.", "consensus"},

	{"replication", "Replication", graph.CategoryTopic,
		"Keeping copies of data on multiple machines for fault tolerance and read scaling.", "root"},
	{"leader-follower", "Leader / Follower", graph.CategoryExplanation,
		"Writes go to a single leader and are streamed to followers. Simple, but failover needs care.", "replication"},
	{"split-brain", "Split Brain", graph.CategoryCriticalPoint,
		"Two nodes both believe they are the leader after a partition. Without fencing, both accept writes and data diverges.", "replication"},

	{"clocks", "Time & Ordering", graph.CategoryTopic,
		"Physical clocks drift, so distributed systems reason about order with logical clocks.", "root"},
	{"lamport", "Lamport Clocks", graph.CategoryExample,
		"Monotonic counters that capture the happened-before relation between events.", "clocks"},
}

// crossLinks are edges outside the parent tree, to make the demo graph a
// real graph rather than a strict hierarchy.
var crossLinks = [][2]string{
	{"raft", "quorum"},
	{"split-brain", "partition"},
	{"leader-follower", "consistency"},
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if _, err := os.Stat(*dbPath); err == nil {
		log.Fatalf("refusing to overwrite existing database: %s", *dbPath)
	}

	db, err := storage.New(*dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	doc := buildDocument(rng)
	payload, err := json.Marshal(doc)
	if err != nil {
		log.Fatalf("encode document: %v", err)
	}

	saved, err := db.SaveMap(context.Background(), *mapName, payload, len(doc.Nodes), len(doc.Edges))
	if err != nil {
		log.Fatalf("save map: %v", err)
	}

	fmt.Printf("Seeded %q (%s): %d nodes, %d edges -> %s\n",
		saved.Name, saved.ID, len(doc.Nodes), len(doc.Edges), *dbPath)
}

// buildDocument lays the demo nodes out in columns by depth, with a little
// vertical jitter so the map does not look machine-ruled.
func buildDocument(rng *rand.Rand) graph.Document {
	depth := func(n demoNode) int {
		d := 0
		for n.parent != "" {
			d++
			for _, p := range demoNodes {
				if p.id == n.parent {
					n = p
					break
				}
			}
		}
		return d
	}

	perDepth := map[int]int{}
	var doc graph.Document
	for _, dn := range demoNodes {
		d := depth(dn)
		row := perDepth[d]
		perDepth[d] = row + 1

		n := graph.NewNode(dn.id, dn.category, dn.label)
		n.Details = dn.details
		n.Position = graph.Position{
			X: float64(d)*260 + rng.Float64()*40,
			Y: float64(row)*120 + rng.Float64()*40,
		}
		doc.Nodes = append(doc.Nodes, n)

		if dn.parent != "" {
			doc.Edges = append(doc.Edges, graph.NewEdge(dn.parent, dn.id))
		}
	}
	for _, link := range crossLinks {
		e := graph.NewEdge(link[0], link[1])
		e.Label = "relates to"
		doc.Edges = append(doc.Edges, e)
	}
	return doc
}
