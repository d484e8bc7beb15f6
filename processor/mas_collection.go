package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nci/ndelta/utils"
)

type MetadataResponse struct {
	Images []*RasterImage `json:"images"`
	Error  string         `json:"error"`
}

// MASCollection is a CollectionService and StaticImageSource backed
// by the metadata API.
type MASCollection struct {
	Client     *http.Client
	APIAddress string
}

func NewMASCollection(apiAddr string) *MASCollection {
	return &MASCollection{
		Client:     &http.Client{Timeout: 60 * time.Second},
		APIAddress: strings.TrimSuffix(apiAddr, "/"),
	}
}

func (mc *MASCollection) baseURL(dataset string) string {
	addr := mc.APIAddress
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return fmt.Sprintf("%s/%s", addr, url.PathEscape(dataset))
}

// QueryURL builds the intersects query of a collection. A zero limit
// returns every match.
func (mc *MASCollection) QueryURL(dataset string, point *utils.Point, start, end time.Time, limit int) string {
	params := url.Values{}
	if point != nil {
		params.Set("wkt", point.WKT())
	}
	if !start.IsZero() {
		params.Set("time", start.UTC().Format(utils.ISOFormat))
	}
	if !end.IsZero() {
		params.Set("until", end.UTC().Format(utils.ISOFormat))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	query := "intersects"
	if enc := params.Encode(); len(enc) > 0 {
		query += "&" + enc
	}
	return mc.baseURL(dataset) + "?" + query
}

func (mc *MASCollection) get(ctx context.Context, queryURL string) ([]*RasterImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := mc.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET request to %s failed. Error: %v", queryURL, err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Error parsing response body from %s. Error: %v", queryURL, err)
	}

	var metadata MetadataResponse
	err = json.Unmarshal(body, &metadata)
	if err != nil {
		return nil, fmt.Errorf("Problem parsing JSON response from %s. Error: %v", queryURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(metadata.Error) > 0 {
			return nil, fmt.Errorf("metadata API error from %s: %s", queryURL, metadata.Error)
		}
		return nil, fmt.Errorf("metadata API error from %s: %s", queryURL, resp.Status)
	}

	for _, img := range metadata.Images {
		if err := img.Validate(); err != nil {
			return nil, fmt.Errorf("invalid image from %s: %v", queryURL, err)
		}
	}
	return metadata.Images, nil
}

func (mc *MASCollection) QueryCollection(ctx context.Context, datasetID string, point *utils.Point, start, end time.Time) (ImageCollection, error) {
	return &masImageCollection{mas: mc, dataset: datasetID, point: point, start: start, end: end}, nil
}

// LoadImage returns the latest image of a dataset.
func (mc *MASCollection) LoadImage(ctx context.Context, datasetID string) (*RasterImage, error) {
	queryURL := mc.baseURL(datasetID) + "?intersects&order=desc&limit=1"
	images, err := mc.get(ctx, queryURL)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("dataset %s has no image", datasetID)
	}
	return images[0], nil
}

// PutImage registers an image with the metadata API. Band data
// cannot carry NaN so missing pixels must use the band nodata value.
func (mc *MASCollection) PutImage(ctx context.Context, img *RasterImage) error {
	if err := img.Validate(); err != nil {
		return err
	}
	for name, band := range img.Bands {
		for _, v := range band.Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("image %s band %s holds non finite values, use a nodata value instead", img.ID, name)
			}
		}
	}

	body, err := json.Marshal(img)
	if err != nil {
		return err
	}

	putURL := mc.baseURL(img.Dataset) + "?put_image"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, putURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := mc.Client.Do(req)
	if err != nil {
		return fmt.Errorf("POST request to %s failed. Error: %v", putURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := ioutil.ReadAll(resp.Body)
		return fmt.Errorf("metadata API error from %s: %s %s", putURL, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

type masImageCollection struct {
	mas     *MASCollection
	dataset string
	point   *utils.Point
	start   time.Time
	end     time.Time
}

func (c *masImageCollection) First(ctx context.Context) (*RasterImage, error) {
	images, err := c.mas.get(ctx, c.mas.QueryURL(c.dataset, c.point, c.start, c.end, 1))
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, nil
	}
	return images[0], nil
}

func (c *masImageCollection) ToOrderedList(ctx context.Context, limit int) ([]*RasterImage, error) {
	if limit < 0 {
		return nil, fmt.Errorf("negative list limit %d", limit)
	}
	if limit == 0 {
		return nil, nil
	}
	images, err := c.mas.get(ctx, c.mas.QueryURL(c.dataset, c.point, c.start, c.end, limit))
	if err != nil {
		return nil, err
	}
	if len(images) > limit {
		images = images[:limit]
	}
	return images, nil
}

func (c *masImageCollection) ToList(ctx context.Context) ([]*RasterImage, error) {
	return c.mas.get(ctx, c.mas.QueryURL(c.dataset, c.point, c.start, c.end, 0))
}
