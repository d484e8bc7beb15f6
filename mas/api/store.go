package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// imageQuery is a collection query. Empty fields are not filtered on.
type imageQuery struct {
	Dataset string
	WKT     string
	Time    string
	Until   string
	Limit   int
	Desc    bool
}

// imageRecord is the subset of an image record the store indexes.
// The full record is kept verbatim.
type imageRecord struct {
	ID         string    `json:"id"`
	Dataset    string    `json:"dataset"`
	TimeStamp  time.Time `json:"timestamp"`
	CloudCover float64   `json:"cloud_cover"`
	Footprint  []float64 `json:"footprint"`
}

type imageStore interface {
	Intersects(q *imageQuery) (json.RawMessage, error)
	PutImage(rec *imageRecord, raw json.RawMessage) error
}

const schemaSQL = `
create extension if not exists postgis;
create table if not exists images (
	dataset     text not null,
	id          text not null,
	acquired    timestamptz not null,
	cloud_cover double precision not null default 0,
	footprint   geometry(Polygon, 4326) not null,
	record      jsonb not null,
	primary key (dataset, id)
);
create index if not exists images_footprint_idx on images using gist (footprint);
create index if not exists images_acquired_idx on images (dataset, acquired);
`

type pgStore struct {
	db *sql.DB
}

func (s *pgStore) init() error {
	_, err := s.db.Exec(schemaSQL)
	return err
}

// Intersects returns the matching records as a JSON array ordered by
// acquisition time then id. Footprint boundaries count as inside.
func (s *pgStore) Intersects(q *imageQuery) (json.RawMessage, error) {
	order := "asc"
	if q.Desc {
		order = "desc"
	}

	// The nullif() noise coerces Go's empty string zero values for
	// missing parameters into proper null arguments.
	stmt := fmt.Sprintf(`select coalesce(json_agg(t.record order by t.acquired %s, t.id %s), '[]'::json)
		from (
			select record, acquired, id from images
			where dataset = $1
			and (nullif($2,'')::text is null or ST_Intersects(footprint, ST_GeomFromText(nullif($2,''), 4326)))
			and (nullif($3,'')::timestamptz is null or acquired >= nullif($3,'')::timestamptz)
			and (nullif($4,'')::timestamptz is null or acquired < nullif($4,'')::timestamptz)
			order by acquired %s, id %s
			limit nullif($5, 0)
		) t`, order, order, order, order)

	var payload []byte
	err := s.db.QueryRow(stmt, q.Dataset, q.WKT, q.Time, q.Until, q.Limit).Scan(&payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}

func (s *pgStore) PutImage(rec *imageRecord, raw json.RawMessage) error {
	bbox := rec.Footprint
	polygon := fmt.Sprintf("POLYGON ((%f %f, %f %f, %f %f, %f %f, %f %f))", bbox[0], bbox[1], bbox[2], bbox[1], bbox[2], bbox[3], bbox[0], bbox[3], bbox[0], bbox[1])
	_, err := s.db.Exec(`insert into images (dataset, id, acquired, cloud_cover, footprint, record)
		values ($1, $2, $3, $4, ST_GeomFromText($5, 4326), $6)
		on conflict (dataset, id) do update set
			acquired = excluded.acquired,
			cloud_cover = excluded.cloud_cover,
			footprint = excluded.footprint,
			record = excluded.record`,
		rec.Dataset, rec.ID, rec.TimeStamp, rec.CloudCover, polygon, []byte(raw))
	return err
}
