package builder

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"certgallery/src/common"
	"certgallery/src/config"
)

var pageTmpl = template.Must(template.New("gallery").Parse(galleryTemplate))

type pageData struct {
	config.PageConfig
	Records common.Manifest
	Cards   []card
}

type card struct {
	common.CertificateRecord
	ID string
}

// newCards pairs each record with an anchor id that is unique on the page.
// Names that slug to the same id get -2, -3, ... in manifest order.
func newCards(records common.Manifest) []card {
	cards := make([]card, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		base := r.Anchor()
		id := base
		for i := 2; seen[id]; i++ {
			id = fmt.Sprintf("%s-%d", base, i)
		}
		seen[id] = true
		cards = append(cards, card{CertificateRecord: r, ID: id})
	}
	return cards
}

// RenderPage writes the gallery page for records to outputPath, replacing any existing file.
// Nothing is written for an empty manifest.
func RenderPage(records common.Manifest, outputPath string, page config.PageConfig) error {
	if len(records) == 0 {
		return common.ErrEmptyManifest
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, pageData{PageConfig: page, Records: records, Cards: newCards(records)}); err != nil {
		return fmt.Errorf("failed to render gallery page: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return &common.FilesystemError{Op: "create directory", Path: filepath.Dir(outputPath), Err: err}
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return &common.FilesystemError{Op: "write", Path: outputPath, Err: err}
	}
	return nil
}

const galleryTemplate = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.4.0/css/all.min.css">
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
            font-family: 'Segoe UI', 'Microsoft YaHei', sans-serif;
        }
        body {
            background: linear-gradient(135deg, #f5f7fa 0%, #c3cfe2 100%);
            color: #333;
            line-height: 1.6;
            padding: 20px;
            min-height: 100vh;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
            padding: 30px 20px;
        }
        header {
            text-align: center;
            margin-bottom: 50px;
            padding: 30px;
            background: rgba(255, 255, 255, 0.9);
            border-radius: 20px;
            box-shadow: 0 10px 30px rgba(0, 0, 0, 0.08);
            border-left: 5px solid #4a6fa5;
        }
        h1 {
            color: #2c3e50;
            font-size: 2.8rem;
            margin-bottom: 15px;
            font-weight: 600;
        }
        .subtitle {
            color: #7f8c8d;
            font-size: 1.2rem;
            max-width: 600px;
            margin: 0 auto;
        }
        .stats {
            display: inline-flex;
            gap: 20px;
            margin-top: 20px;
            background: #f8f9fa;
            padding: 12px 25px;
            border-radius: 50px;
            font-weight: 500;
        }
        .stats span { color: #4a6fa5; }
        .gallery {
            display: grid;
            grid-template-columns: repeat(auto-fill, minmax(350px, 1fr));
            gap: 30px;
            margin-top: 20px;
        }
        .cert-card {
            background: white;
            border-radius: 15px;
            overflow: hidden;
            box-shadow: 0 8px 25px rgba(0, 0, 0, 0.1);
            transition: all 0.3s ease;
            display: flex;
            flex-direction: column;
        }
        .cert-card:hover {
            transform: translateY(-10px);
            box-shadow: 0 15px 35px rgba(0, 0, 0, 0.15);
        }
        .cert-img-container {
            flex-grow: 1;
            overflow: hidden;
            display: flex;
            align-items: center;
            justify-content: center;
            background: #f8f9fa;
            padding: 20px;
            min-height: 250px;
        }
        .cert-img {
            max-width: 100%;
            max-height: 240px;
            object-fit: contain;
            border-radius: 8px;
            box-shadow: 0 4px 10px rgba(0,0,0,0.05);
        }
        .cert-info {
            padding: 20px;
            border-top: 1px solid #eee;
        }
        .cert-name {
            font-weight: 600;
            color: #2c3e50;
            font-size: 1.1rem;
            margin-bottom: 5px;
            word-break: break-word;
        }
        .cert-actions {
            display: flex;
            justify-content: space-between;
            margin-top: 15px;
        }
        .btn {
            padding: 8px 18px;
            border-radius: 50px;
            text-decoration: none;
            font-weight: 500;
            font-size: 0.9rem;
            transition: all 0.2s;
            display: inline-flex;
            align-items: center;
            gap: 8px;
        }
        .btn-view { background: #4a6fa5; color: white; }
        .btn-view:hover { background: #3a5a80; }
        .btn-download {
            background: #f0f0f0;
            color: #555;
            border: 1px solid #ddd;
        }
        .btn-download:hover { background: #e0e0e0; }
        footer {
            text-align: center;
            margin-top: 60px;
            padding: 25px;
            color: #7f8c8d;
            font-size: 0.95rem;
            border-top: 1px solid #eaeaea;
        }
        @media (max-width: 768px) {
            .gallery { grid-template-columns: 1fr; }
            h1 { font-size: 2.2rem; }
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1><i class="fas fa-award"></i> {{.Title}}</h1>
            <p class="subtitle">{{.Subtitle}}</p>
            <div class="stats">
                <div><i class="fas fa-certificate"></i> Certificates: <span id="certCount">{{len .Records}}</span></div>
                <div><i class="fas fa-sync-alt"></i> Updated: <span id="currentDate"></span></div>
            </div>
        </header>

        <main>
            <div class="gallery">
{{- range .Cards}}
                <div class="cert-card" id="{{.ID}}">
                    <div class="cert-img-container">
                        <img src="{{.RelativePath}}" alt="{{.DisplayName}}" class="cert-img" loading="lazy">
                    </div>
                    <div class="cert-info">
                        <div class="cert-name">{{.DisplayName}}</div>
                        <div class="cert-actions">
                            <a href="{{.RelativePath}}" target="_blank" class="btn btn-view">
                                <i class="fas fa-expand-alt"></i> View
                            </a>
                            <a href="{{.RelativePath}}" download class="btn btn-download">
                                <i class="fas fa-download"></i> Download
                            </a>
                        </div>
                    </div>
                </div>
{{- end}}
            </div>
        </main>

        <footer>
            <p>{{.Footer}}</p>
        </footer>
    </div>

    <script>
        const now = new Date();
        const options = { year: 'numeric', month: 'long', day: 'numeric' };
        document.getElementById('currentDate').textContent = now.toLocaleDateString({{.Lang}}, options);

        document.addEventListener('DOMContentLoaded', function() {
            const images = document.querySelectorAll('.cert-img');
            images.forEach(img => {
                img.style.opacity = '0';
                img.style.transition = 'opacity 0.5s ease';
                img.onload = function() {
                    this.style.opacity = '1';
                };
                // Already cached
                if (img.complete) img.onload();
            });
        });
    </script>
</body>
</html>
`
