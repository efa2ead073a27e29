// Package scaffold creates agent projects from the embedded template tree.
//
// Templates are layered: templates/base is shared by every project, then the
// selected agent, then the deployment target, then the optional data
// ingestion pipeline. Files ending in .tmpl are rendered with text/template,
// everything else is copied verbatim, and a leading "dot_" becomes ".".
package scaffold

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/tildaslashalef/auditnest/internal/git"
	"github.com/tildaslashalef/auditnest/internal/loggy"
	"github.com/tildaslashalef/auditnest/internal/utils"
)

//go:embed all:templates
var embeddedTemplates embed.FS

const (
	// DefaultRegion is the region the templates are written for
	DefaultRegion = "us-central1"

	// TargetAgentEngine deploys to Vertex AI Agent Engine
	TargetAgentEngine = "agent_engine"
	// TargetCloudRun deploys to Cloud Run
	TargetCloudRun = "cloud_run"

	baseDir          = "base"
	agentsDir        = "agents"
	deploymentDir    = "deployment"
	dataIngestionDir = "data_ingestion"

	templateExt = ".tmpl"
	dotPrefix   = "dot_"

	initialCommitMessage = "Initial commit from auditnest create"
)

var (
	// ErrProjectExists is returned when the destination directory already exists
	ErrProjectExists = errors.New("project directory already exists")
	// ErrUnsupportedTarget is returned when the agent cannot deploy to the requested target
	ErrUnsupportedTarget = errors.New("unsupported deployment target")
	// ErrDataIngestionUnsupported is returned when a pipeline is requested for an agent without one
	ErrDataIngestionUnsupported = errors.New("agent does not support data ingestion")
)

// Options controls project creation
type Options struct {
	ProjectName          string
	Agent                string // name or catalog number
	DeploymentTarget     string
	IncludeDataIngestion bool
	Region               string
	OutputDir            string
	InitGit              bool
}

// templateData is what .tmpl files are rendered against
type templateData struct {
	ProjectName          string
	Agent                Agent
	DeploymentTarget     string
	IncludeDataIngestion bool
	Region               string
}

// Scaffolder renders projects from a template tree
type Scaffolder struct {
	fsys    fs.FS
	catalog *Catalog
	git     *git.Service
	logger  *loggy.Logger
}

// New creates a Scaffolder over the embedded templates
func New(logger *loggy.Logger) (*Scaffolder, error) {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return nil, fmt.Errorf("opening embedded templates: %w", err)
	}
	return NewWithFS(sub, logger)
}

// NewWithFS creates a Scaffolder over an arbitrary template tree
func NewWithFS(fsys fs.FS, logger *loggy.Logger) (*Scaffolder, error) {
	catalog, err := LoadCatalog(fsys)
	if err != nil {
		return nil, err
	}

	return &Scaffolder{
		fsys:    fsys,
		catalog: catalog,
		git:     git.NewService(logger),
		logger:  logger,
	}, nil
}

// Catalog returns the agents available to Create
func (s *Scaffolder) Catalog() *Catalog {
	return s.catalog
}

// Create renders a new project and returns its directory
func (s *Scaffolder) Create(ctx context.Context, opts Options) (string, error) {
	agent, err := s.catalog.Resolve(opts.Agent)
	if err != nil {
		return "", err
	}

	target := opts.DeploymentTarget
	if target == "" {
		target = agent.DefaultTarget()
	}
	if !agent.Supports(target) {
		return "", fmt.Errorf("%w: %s does not support %q", ErrUnsupportedTarget, agent.Name, target)
	}
	if opts.IncludeDataIngestion && !agent.DataIngestion {
		return "", fmt.Errorf("%w: %s", ErrDataIngestionUnsupported, agent.Name)
	}

	name := utils.SanitizeDirectoryName(opts.ProjectName)
	if name == "" {
		name = utils.GenerateProjectName()
	}
	region := opts.Region
	if region == "" {
		region = DefaultRegion
	}

	dest := filepath.Join(opts.OutputDir, name)
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%w: %s", ErrProjectExists, dest)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking project directory: %w", err)
	}

	data := templateData{
		ProjectName:          name,
		Agent:                agent,
		DeploymentTarget:     target,
		IncludeDataIngestion: opts.IncludeDataIngestion,
		Region:               region,
	}

	layers := []string{
		baseDir,
		path.Join(agentsDir, agent.Name),
		path.Join(deploymentDir, target),
	}
	if opts.IncludeDataIngestion {
		layers = append(layers, dataIngestionDir)
	}

	s.logger.Info("Creating project", "name", name, "agent", agent.Name, "target", target, "region", region)

	if err := s.render(ctx, dest, layers, data); err != nil {
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			s.logger.Warn("Failed to clean up partial project", "path", dest, "error", rmErr)
		}
		return "", err
	}

	if region != DefaultRegion {
		n, err := ReplaceRegion(dest, region)
		if err != nil {
			return dest, err
		}
		s.logger.Debug("Replaced region", "region", region, "files", n)
	}

	if opts.InitGit {
		if err := s.initRepository(dest); err != nil {
			return dest, err
		}
	}

	return dest, nil
}

func (s *Scaffolder) render(ctx context.Context, dest string, layers []string, data templateData) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	for _, layer := range layers {
		if _, err := fs.Stat(s.fsys, layer); err != nil {
			return fmt.Errorf("template layer %s: %w", layer, err)
		}

		err := fs.WalkDir(s.fsys, layer, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			rel := strings.TrimPrefix(p, layer+"/")
			if strings.HasPrefix(layer, agentsDir+"/") && rel == manifestName {
				return nil
			}

			return s.writeFile(p, filepath.Join(dest, outputPath(rel)), data)
		})
		if err != nil {
			return fmt.Errorf("rendering %s: %w", layer, err)
		}
	}

	return nil
}

func (s *Scaffolder) writeFile(src, target string, data templateData) error {
	content, err := fs.ReadFile(s.fsys, src)
	if err != nil {
		return err
	}

	if strings.HasSuffix(src, templateExt) {
		tmpl, err := template.New(path.Base(src)).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", src, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("executing %s: %w", src, err)
		}
		content = buf.Bytes()
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.WriteFile(target, content, 0644)
}

// outputPath maps a template path to the generated file path
func outputPath(rel string) string {
	rel = strings.TrimSuffix(rel, templateExt)
	parts := strings.Split(rel, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, dotPrefix) {
			parts[i] = "." + strings.TrimPrefix(part, dotPrefix)
		}
	}
	return filepath.Join(parts...)
}

func (s *Scaffolder) initRepository(dest string) error {
	if err := s.git.InitRepo(dest); err != nil {
		return err
	}
	if _, err := s.git.CommitAll(initialCommitMessage, nil); err != nil && !errors.Is(err, git.ErrNothingToCommit) {
		return err
	}
	return nil
}
