package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// ConsistencyService reports on the dual-store invariant: a metadata row
// exists iff a vector collection with the matching native identifier
// exists. It only detects divergence; it never repairs it.
type ConsistencyService struct {
	collections CollectionStore
	vectors     VectorStore
	logger      *slog.Logger
}

func NewConsistencyService(collections CollectionStore, vectors VectorStore) *ConsistencyService {
	return &ConsistencyService{
		collections: collections,
		vectors:     vectors,
		logger:      slog.Default().With("component", "consistency_service"),
	}
}

type ConsistencyReport struct {
	Healthy                  bool        `json:"healthy"`
	MetadataCollections      int         `json:"metadata_collections"`
	VectorCollections        int         `json:"vector_collections"`
	DanglingMetadataRows     []uuid.UUID `json:"dangling_metadata_rows"`
	OrphanedVectorCollection []uuid.UUID `json:"orphaned_vector_collections"`
}

func (s *ConsistencyService) Status(ctx context.Context) (*ConsistencyReport, error) {
	refs, err := s.collections.VectorStoreRefs(ctx)
	if err != nil {
		return nil, err
	}
	vecIDs, err := s.vectors.CollectionIDs(ctx)
	if err != nil {
		return nil, mapVectorStoreErr(err)
	}

	vecSet := make(map[uuid.UUID]bool, len(vecIDs))
	for _, id := range vecIDs {
		vecSet[id] = true
	}

	report := &ConsistencyReport{
		MetadataCollections:      len(refs),
		VectorCollections:        len(vecIDs),
		DanglingMetadataRows:     []uuid.UUID{},
		OrphanedVectorCollection: []uuid.UUID{},
	}

	referenced := make(map[uuid.UUID]bool, len(refs))
	for collectionID, ref := range refs {
		referenced[ref] = true
		if !vecSet[ref] {
			report.DanglingMetadataRows = append(report.DanglingMetadataRows, collectionID)
		}
	}
	for _, id := range vecIDs {
		if !referenced[id] {
			report.OrphanedVectorCollection = append(report.OrphanedVectorCollection, id)
		}
	}

	report.Healthy = len(report.DanglingMetadataRows) == 0 && len(report.OrphanedVectorCollection) == 0
	if !report.Healthy {
		s.logger.Warn("dual-store divergence detected",
			"dangling_metadata", len(report.DanglingMetadataRows),
			"orphaned_vector", len(report.OrphanedVectorCollection))
	}
	return report, nil
}
