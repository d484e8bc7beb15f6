package extractor

import (
	"crypto/md5"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	goeval "github.com/edisonguo/govaluate"
)

// CrawlScenes extracts every scene document under rootDir. conc
// bounds the number of directories read concurrently and pattern is
// an optional boolean expression over `path` and `type` ("d" or "f")
// selecting which entries are visited. Scenes extracted before an
// error are returned along with it.
func CrawlScenes(rootDir string, conc int, pattern string) ([]*Scene, error) {
	absRootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}

	expr, err := parsePatternExpression(pattern)
	if err != nil {
		return nil, err
	}

	crawler := NewSceneCrawler(conc, expr)
	scenes, err := crawler.Crawl(absRootDir)

	sort.Slice(scenes, func(i, j int) bool {
		if scenes[i].Dataset != scenes[j].Dataset {
			return scenes[i].Dataset < scenes[j].Dataset
		}
		if !scenes[i].Acquired.Equal(scenes[j].Acquired) {
			return scenes[i].Acquired.Before(scenes[j].Acquired)
		}
		return scenes[i].ID < scenes[j].ID
	})
	return scenes, err
}

func GetPosixInfo(filePath string, fStat os.FileInfo) *PosixInfo {
	stat, ok := fStat.Sys().(*syscall.Stat_t)
	if !ok {
		return &PosixInfo{FilePath: filePath, Size: fStat.Size(), MTime: fStat.ModTime().UTC()}
	}
	fileSignature := fmt.Sprintf("%s%d%d%d%d", filePath, stat.Ino, stat.Size, stat.Mtim.Sec, stat.Mtim.Nsec)
	return &PosixInfo{
		FilePath: filePath,
		INode:    stat.Ino,
		Size:     stat.Size,
		MTime:    time.Unix(int64(stat.Mtim.Sec), int64(stat.Mtim.Nsec)).UTC(),
		CTime:    time.Unix(int64(stat.Ctim.Sec), int64(stat.Ctim.Nsec)).UTC(),
		ID:       fmt.Sprintf("%x", md5.Sum([]byte(fileSignature))),
	}
}

func parsePatternExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	validVariables := map[string]struct{}{"path": struct{}{}, "type": struct{}{}}
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are %v", varName, validVariables)
			}
		}
	}
	return expr, nil
}

const DefaultMaxCrawlErrors = 1000

type SceneCrawler struct {
	Outputs    chan *Scene
	Error      chan error
	wg         sync.WaitGroup
	concLimit  chan struct{}
	outputDone chan struct{}
	pattern    *goeval.EvaluableExpression
	scenes     []*Scene
}

func NewSceneCrawler(conc int, pattern *goeval.EvaluableExpression) *SceneCrawler {
	if conc <= 0 {
		conc = 1
	}
	crawler := &SceneCrawler{
		Outputs:    make(chan *Scene, 4096),
		Error:      make(chan error, 100),
		concLimit:  make(chan struct{}, conc),
		outputDone: make(chan struct{}, 1),
		pattern:    pattern,
	}
	return crawler
}

func (sc *SceneCrawler) Crawl(currPath string) ([]*Scene, error) {
	go sc.collectResult()

	sc.wg.Add(1)
	sc.concLimit <- struct{}{}
	sc.crawlDir(currPath, false)
	sc.wg.Wait()

	close(sc.Outputs)
	<-sc.outputDone

	close(sc.Error)
	var errors []string
	errCount := 0
	for err := range sc.Error {
		errors = append(errors, err.Error())
		errCount++
		if errCount >= DefaultMaxCrawlErrors {
			errors = append(errors, " ... too many errors")
			break
		}
	}

	if len(errors) > 0 {
		return sc.scenes, fmt.Errorf("%s", strings.Join(errors, "\n"))
	}

	return sc.scenes, nil
}

func (sc *SceneCrawler) sendError(err error) {
	select {
	case sc.Error <- err:
	default:
	}
}

func (sc *SceneCrawler) crawlDir(currPath string, serialised bool) {
	defer sc.wg.Done()
	if !serialised {
		defer func() { <-sc.concLimit }()
	}
	files, err := os.ReadDir(currPath)
	if err != nil {
		sc.sendError(fmt.Errorf("Could not read dir: %v", err))
		return
	}

	for _, fi := range files {
		filePath := path.Join(currPath, fi.Name())
		fileMode := fi.Type()

		if fileMode&os.ModeSymlink != 0 {
			fStat, err := os.Stat(filePath)
			if err != nil {
				sc.sendError(err)
				continue
			}
			fileMode = fStat.Mode().Type()
		}

		isDir := fileMode.IsDir()
		if !isDir && !fileMode.IsRegular() {
			continue
		}

		if sc.pattern != nil {
			result, err := sc.evaluatePatternExpression(filePath, isDir)
			if err != nil {
				sc.sendError(err)
				continue
			}

			if !result {
				continue
			}
		}

		if isDir {
			sc.wg.Add(1)
			select {
			case sc.concLimit <- struct{}{}:
				go func(p string) {
					sc.crawlDir(p, false)
				}(filePath)
			default:
				sc.crawlDir(filePath, true)
			}
			continue
		}

		if !isSceneFile(filePath) {
			continue
		}

		scene, err := ExtractScene(filePath)
		if err != nil {
			sc.sendError(err)
			continue
		}
		sc.Outputs <- scene
	}
}

func (sc *SceneCrawler) evaluatePatternExpression(filePath string, isDir bool) (bool, error) {
	fileType := "f"
	if isDir {
		fileType = "d"
	}

	parameters := map[string]interface{}{"type": fileType, "path": filePath}
	result, err := sc.pattern.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("pattern expression: %v", err)
	}

	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("pattern expression: result '%v' is not boolean", result)
	}
	return val, nil
}

func (sc *SceneCrawler) collectResult() {
	for scene := range sc.Outputs {
		sc.scenes = append(sc.scenes, scene)
	}
	sc.outputDone <- struct{}{}
}
