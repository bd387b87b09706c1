package robotapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// robotServer fakes the onboard API. Handlers are registered per
// endpoint path (relative to /api/robot/).
func robotServer(t *testing.T, handlers map[string]http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/robot/")
		h, ok := handlers[path]
		if !ok {
			t.Errorf("unexpected endpoint: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithAddress(strings.TrimPrefix(srv.URL, "http://")))
	return srv, client
}

func TestClientAddress(t *testing.T) {
	t.Run("calls without an address fail", func(t *testing.T) {
		client := NewClient()
		if _, err := client.Status(context.Background()); !errors.Is(err, ErrNoAddress) {
			t.Errorf("expected ErrNoAddress, got %v", err)
		}
	})

	t.Run("bare host gets the default port", func(t *testing.T) {
		client := NewClient(WithAddress("10.0.0.5"))
		url, err := client.url("status")
		if err != nil {
			t.Fatalf("url build failed: %v", err)
		}
		if url != "http://10.0.0.5:8080/api/robot/status" {
			t.Errorf("unexpected url: %s", url)
		}
	})

	t.Run("bare host gets the configured port", func(t *testing.T) {
		client := NewClient(WithAddress("10.0.0.5"), WithPort("9090"))
		url, err := client.url("status")
		if err != nil {
			t.Fatalf("url build failed: %v", err)
		}
		if url != "http://10.0.0.5:9090/api/robot/status" {
			t.Errorf("unexpected url: %s", url)
		}
	})

	t.Run("explicit port wins over the configured one", func(t *testing.T) {
		client := NewClient(WithAddress("10.0.0.5:8000"), WithPort("9090"))
		url, err := client.url("status")
		if err != nil {
			t.Fatalf("url build failed: %v", err)
		}
		if url != "http://10.0.0.5:8000/api/robot/status" {
			t.Errorf("unexpected url: %s", url)
		}
	})

	t.Run("clear forgets the robot", func(t *testing.T) {
		client := NewClient(WithAddress("10.0.0.5"))
		client.ClearAddress()
		if client.HasAddress() {
			t.Error("address survived clear")
		}
	})
}

func TestClientStatus(t *testing.T) {
	dist := 0.12
	_, client := robotServer(t, map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(Status{
				MovementStatus:   "stopped",
				NavigationStatus: "success",
				CurrentTable:     "T4",
				TargetDistance:   &dist,
				WaitingAtTable:   true,
				RobotID:          "waiter-1",
			})
		},
	})

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.WaitingAtTable || status.CurrentTable != "T4" {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.TargetDistance == nil || *status.TargetDistance != 0.12 {
		t.Errorf("target distance lost: %v", status.TargetDistance)
	}
}

func TestClientSpeechPipeline(t *testing.T) {
	var startBody, stopBody map[string]bool
	_, client := robotServer(t, map[string]http.HandlerFunc{
		"stt_start": func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &startBody)
			io.WriteString(w, `{}`)
		},
		"stt_stop": func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &stopBody)
			io.WriteString(w, `{}`)
		},
	})

	if err := client.STTStart(context.Background()); err != nil {
		t.Fatalf("stt start failed: %v", err)
	}
	if err := client.STTStop(context.Background()); err != nil {
		t.Fatalf("stt stop failed: %v", err)
	}
	if !startBody["is_speaking"] {
		t.Error("stt_start should report is_speaking true")
	}
	if stopBody["is_speaking"] {
		t.Error("stt_stop should report is_speaking false")
	}
}

func TestClientNavigation(t *testing.T) {
	t.Run("poses", func(t *testing.T) {
		_, client := robotServer(t, map[string]http.HandlerFunc{
			"set_poses": func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"set_poses": [{"name": "dock", "x": 0, "y": 0, "yaw": 0}, {"name": "T4", "x": 2.5, "y": 1.0, "yaw": 1.57}]}`)
			},
		})
		poses, err := client.Poses(context.Background())
		if err != nil {
			t.Fatalf("poses failed: %v", err)
		}
		if len(poses) != 2 || poses[1].X != 2.5 {
			t.Errorf("unexpected poses: %+v", poses)
		}
	})

	t.Run("malformed poses response", func(t *testing.T) {
		_, client := robotServer(t, map[string]http.HandlerFunc{
			"set_poses": func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"unexpected": true}`)
			},
		})
		if _, err := client.Poses(context.Background()); err == nil {
			t.Error("expected error for malformed response")
		}
	})

	t.Run("tables requires success flag", func(t *testing.T) {
		_, client := robotServer(t, map[string]http.HandlerFunc{
			"tables": func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"success": false}`)
			},
		})
		if _, err := client.Tables(context.Background()); err == nil {
			t.Error("expected error when success is false")
		}
	})

	t.Run("navigate to table", func(t *testing.T) {
		var got map[string]string
		_, client := robotServer(t, map[string]http.HandlerFunc{
			"navigate_table": func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				json.Unmarshal(body, &got)
				io.WriteString(w, `{}`)
			},
		})
		if err := client.NavigateToTable(context.Background(), "T4"); err != nil {
			t.Fatalf("navigate failed: %v", err)
		}
		if got["table_name"] != "T4" {
			t.Errorf("table name lost: %v", got)
		}
	})
}

func TestClientDock(t *testing.T) {
	t.Run("completes delivery then navigates home", func(t *testing.T) {
		var updates []map[string]string
		var navigated string
		_, client := robotServer(t, map[string]http.HandlerFunc{
			"update-status/": func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				raw, _ := io.ReadAll(r.Body)
				json.Unmarshal(raw, &body)
				updates = append(updates, body)
				io.WriteString(w, `{}`)
			},
			"navigate_table": func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				raw, _ := io.ReadAll(r.Body)
				json.Unmarshal(raw, &body)
				navigated = body["table_name"]
				io.WriteString(w, `{}`)
			},
		})

		err := client.Dock(context.Background(), &Status{CurrentTable: "T4", RobotID: "waiter-1"})
		if err != nil {
			t.Fatalf("dock failed: %v", err)
		}
		if len(updates) != 1 || updates[0]["status"] != "completed" || updates[0]["current_table"] != "T4" {
			t.Errorf("delivery completion not reported: %v", updates)
		}
		if navigated != DockPoseName {
			t.Errorf("expected navigation to dock, got %q", navigated)
		}
	})

	t.Run("milestone failure still docks", func(t *testing.T) {
		var navigated string
		_, client := robotServer(t, map[string]http.HandlerFunc{
			"update-status/": func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "db down", http.StatusInternalServerError)
			},
			"navigate_table": func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				raw, _ := io.ReadAll(r.Body)
				json.Unmarshal(raw, &body)
				navigated = body["table_name"]
				io.WriteString(w, `{}`)
			},
		})

		if err := client.Dock(context.Background(), &Status{CurrentTable: "T4", RobotID: "waiter-1"}); err != nil {
			t.Fatalf("dock should survive a milestone failure, got %v", err)
		}
		if navigated != DockPoseName {
			t.Errorf("expected navigation to dock, got %q", navigated)
		}
	})

	t.Run("unknown status skips the milestone", func(t *testing.T) {
		var navigated string
		_, client := robotServer(t, map[string]http.HandlerFunc{
			"navigate_table": func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				raw, _ := io.ReadAll(r.Body)
				json.Unmarshal(raw, &body)
				navigated = body["table_name"]
				io.WriteString(w, `{}`)
			},
		})

		if err := client.Dock(context.Background(), nil); err != nil {
			t.Fatalf("dock failed: %v", err)
		}
		if navigated != DockPoseName {
			t.Errorf("expected navigation to dock, got %q", navigated)
		}
	})
}

func TestClientErrors(t *testing.T) {
	_, client := robotServer(t, map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "lost localization", http.StatusServiceUnavailable)
		},
	})

	_, err := client.Status(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable || !strings.Contains(apiErr.Message, "lost localization") {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
}
