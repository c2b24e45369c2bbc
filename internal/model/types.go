package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Layer is the persisted form of one network's geometry.
type Layer struct {
	Inputs  int `json:"inputs"`
	Outputs int `json:"outputs"`
	Hidden  int `json:"hidden"`
}

// Genome is a stored genome: the raw integer sequence plus the identity
// needed to trace it through a run.
type Genome struct {
	VersionedRecord
	ID         string `json:"id"`
	ParentID   string `json:"parent_id,omitempty"`
	Generation int    `json:"generation"`
	Values     []int  `json:"values"`
}

// RunRecord describes one evolutionary run and where it ended up.
type RunRecord struct {
	VersionedRecord
	ID             string  `json:"id"`
	Scape          string  `json:"scape"`
	Seed           int64   `json:"seed"`
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	Layers         []Layer `json:"layers"`
	BestGenomeID   string  `json:"best_genome_id"`
	BestFitness    float64 `json:"best_fitness"`
}

type GenerationDiagnostics struct {
	Generation          int     `json:"generation"`
	BestFitness         float64 `json:"best_fitness"`
	MeanFitness         float64 `json:"mean_fitness"`
	MinFitness          float64 `json:"min_fitness"`
	MeanGenomeLength    float64 `json:"mean_genome_length"`
	MeanGateCount       float64 `json:"mean_gate_count"`
	DistinctFingerprint int     `json:"distinct_fingerprints"`
}

type LineageRecord struct {
	VersionedRecord
	GenomeID    string `json:"genome_id"`
	ParentID    string `json:"parent_id"`
	Generation  int    `json:"generation"`
	Operation   string `json:"operation"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Length      int    `json:"length"`
	Codons      int    `json:"codons"`
}
