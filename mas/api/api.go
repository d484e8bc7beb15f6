// Metadata API
// Serves image records of the scene catalogue from Postgres.

package main

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"strconv"
	"strings"

	reuseport "github.com/kavu/go_reuseport"
	_ "github.com/lib/pq"
	"github.com/nci/gomemcache/memcache"
)

var (
	dbName   = flag.String("database", "mas", "database name")
	dbUser   = flag.String("user", "api", "database user name")
	dbHost   = flag.String("host", "/var/run/postgresql", "database host or socket directory")
	dbPool   = flag.Int("pool", 8, "database pool size")
	dbLimit  = flag.Int("limit", 64, "database concurrent requests")
	httpPort = flag.Int("port", 8080, "http port")
	mcURI    = flag.String("memcache", "", "memcache uri host:port")
)

const maxRecordSize = 256 << 20

type masServer struct {
	store imageStore
	mc    *memcache.Client
}

// Spit out a simple JSON-formatted error message for Content-Type: application/json
func httpJSONError(response http.ResponseWriter, err error, status int) {
	http.Error(response, fmt.Sprintf(`{ "error": %q }`, err.Error()), status)
}

func datasetFromPath(path string) (string, error) {
	dataset := strings.Trim(path, "/")
	if len(dataset) == 0 || strings.Contains(dataset, "/") {
		return "", fmt.Errorf("invalid dataset path: %q", path)
	}
	return dataset, nil
}

func (s *masServer) ServeHTTP(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "application/json")

	query := request.URL.Query()
	if _, ok := query["put_image"]; ok {
		s.putImage(response, request)
		return
	}
	if _, ok := query["intersects"]; ok {
		s.intersects(response, request)
		return
	}

	httpJSONError(response, errors.New("unknown operation; currently supported: ?intersects, ?put_image"), 400)
}

func (s *masServer) intersects(response http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		httpJSONError(response, fmt.Errorf("method %s not allowed for ?intersects", request.Method), 405)
		return
	}

	var hash string
	if s.mc != nil {
		buff := md5.Sum([]byte(request.URL.RequestURI()))
		hash = hex.EncodeToString(buff[:])

		if cached, ok := s.mc.Get(hash); ok == nil {
			response.Write(cached.Value)
			return
		}
	}

	dataset, err := datasetFromPath(request.URL.Path)
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}

	q := &imageQuery{
		Dataset: dataset,
		WKT:     request.FormValue("wkt"),
		Time:    request.FormValue("time"),
		Until:   request.FormValue("until"),
		Desc:    request.FormValue("order") == "desc",
	}
	if limit := request.FormValue("limit"); len(limit) > 0 {
		q.Limit, err = strconv.Atoi(limit)
		if err != nil || q.Limit < 0 {
			httpJSONError(response, fmt.Errorf("invalid limit: %q", limit), 400)
			return
		}
	}

	images, err := s.store.Intersects(q)
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}

	payload := []byte(fmt.Sprintf(`{"images":%s}`, images))
	response.Write(payload)

	if s.mc != nil {
		// don't care about errors; memcache may not necessarily retain this anyway
		s.mc.Set(&memcache.Item{Key: hash, Value: payload})
	}
}

func (s *masServer) putImage(response http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost && request.Method != http.MethodPut {
		httpJSONError(response, fmt.Errorf("method %s not allowed for ?put_image", request.Method), 405)
		return
	}

	dataset, err := datasetFromPath(request.URL.Path)
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}

	raw, err := ioutil.ReadAll(http.MaxBytesReader(response, request.Body, maxRecordSize))
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}

	var rec imageRecord
	if err = json.Unmarshal(raw, &rec); err != nil {
		httpJSONError(response, fmt.Errorf("invalid image record: %v", err), 400)
		return
	}
	if len(rec.Dataset) == 0 {
		rec.Dataset = dataset
	}
	if rec.Dataset != dataset {
		httpJSONError(response, fmt.Errorf("image dataset %s does not match path %s", rec.Dataset, dataset), 400)
		return
	}
	if len(rec.ID) == 0 || rec.TimeStamp.IsZero() || len(rec.Footprint) != 4 {
		httpJSONError(response, errors.New("image record needs id, timestamp and a 4 value footprint"), 400)
		return
	}

	if err = s.store.PutImage(&rec, raw); err != nil {
		httpJSONError(response, err, 500)
		return
	}

	response.Write([]byte(fmt.Sprintf(`{"id":%q,"dataset":%q}`, rec.ID, rec.Dataset)))
}

func main() {

	flag.Parse()

	log.Printf("dbUser %s dbName %s dbPool %d httpPort %d", *dbUser, *dbName, *dbPool, *httpPort)

	dbinfo := fmt.Sprintf("user=%s host=%s dbname=%s sslmode=disable", *dbUser, *dbHost, *dbName)

	db, err := sql.Open("postgres", dbinfo)
	if err != nil {
		panic(err)
	}

	defer db.Close()

	db.SetMaxIdleConns(*dbPool)
	db.SetMaxOpenConns(*dbLimit)

	store := &pgStore{db: db}
	if err = store.init(); err != nil {
		log.Fatalf("failed to initialise schema: %v", err)
	}

	server := &masServer{store: store}
	if *mcURI != "" {
		// lazy connection; errors returned in .Get
		server.mc = memcache.New(*mcURI)
	}

	listener, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", *httpPort))
	if err != nil {
		log.Fatal(err)
	}

	http.Handle("/", server)
	log.Fatal(http.Serve(listener, nil))
}
