package server

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ReloadScriptPath is where the live-reload client is served.
const ReloadScriptPath = "/__sitesmith/reload.js"

// InjectReloadScript appends the live-reload client script to the body of
// an HTML document. Documents already carrying it are returned unchanged.
func InjectReloadScript(doc []byte) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	body := findElement(root, atom.Body)
	if body == nil {
		return doc, nil
	}
	if hasReloadScript(body) {
		return doc, nil
	}

	body.AppendChild(&html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr:     []html.Attribute{{Key: "src", Val: ReloadScriptPath}},
	})

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func hasReloadScript(n *html.Node) bool {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		for _, attr := range n.Attr {
			if attr.Key == "src" && attr.Val == ReloadScriptPath {
				return true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasReloadScript(c) {
			return true
		}
	}
	return false
}

const reloadClient = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var overlay;

  function showError(text) {
    if (!overlay) {
      overlay = document.createElement("pre");
      overlay.id = "__sitesmith_error";
      overlay.style.cssText = "position:fixed;inset:0;margin:0;padding:2em;z-index:2147483647;" +
        "background:rgba(20,0,0,.92);color:#ffb4b4;font:14px/1.5 monospace;white-space:pre-wrap;overflow:auto";
      document.body.appendChild(overlay);
    }
    overlay.textContent = text;
  }

  function refreshStyles() {
    document.querySelectorAll('link[rel="stylesheet"]').forEach(function (link) {
      var url = new URL(link.href);
      url.searchParams.set("__sitesmith", Date.now());
      link.href = url.toString();
    });
  }

  function connect() {
    var ws = new WebSocket(proto + location.host + "/__sitesmith/ws");
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.type === "build_error") {
        showError(msg.target + ": " + msg.content);
      } else if (msg.type === "css_update") {
        if (overlay) { overlay.remove(); overlay = null; }
        refreshStyles();
      } else if (msg.type === "reload") {
        location.reload();
      }
    };
    ws.onclose = function () {
      setTimeout(connect, 1000);
    };
  }

  connect();
})();
`
