package cache

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/cuenv/cuenv/internal/turbopath"
)

// LatestIndex maps a project-root hash to task-name -> latest cache key,
// persisted as task-latest.json and used by `ci` for smart rebuilds and by
// materialize to find "the last known good" entry per task.
type LatestIndex map[string]map[string]string

func (s *Store) latestIndexPath() turbopath.AbsolutePath {
	return s.root.Join("task-latest.json")
}

// LoadLatestIndex reads the index, returning an empty one if absent.
func (s *Store) LoadLatestIndex() (LatestIndex, error) {
	path := s.latestIndexPath()
	if !path.FileExists() {
		return LatestIndex{}, nil
	}
	data, err := path.ReadFile()
	if err != nil {
		return nil, errors.Wrap(err, "cache: read latest index")
	}
	var index LatestIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, errors.Wrap(err, "cache: parse latest index")
	}
	if index == nil {
		index = LatestIndex{}
	}
	return index, nil
}

// RecordLatest updates the index for (projectRootHash, taskName) to key and
// writes it via temp+rename.
func (s *Store) RecordLatest(projectRootHash, taskName, key string) error {
	index, err := s.LoadLatestIndex()
	if err != nil {
		return err
	}
	if index[projectRootHash] == nil {
		index[projectRootHash] = map[string]string{}
	}
	index[projectRootHash][taskName] = key

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cache: marshal latest index")
	}
	return s.latestIndexPath().WriteFileAtomic(data, 0o644)
}
