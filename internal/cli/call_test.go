package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Result  *struct {
		IsError           bool `json:"isError"`
		StructuredContent struct {
			Cause    string `json:"cause"`
			ExitCode *int   `json:"exitCode"`
		} `json:"structuredContent"`
	} `json:"result"`
	Error *struct {
		Code int `json:"code"`
	} `json:"error"`
}

func TestCallCommand(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		wantErr   bool
		wantCode  int
		wantCause string
		isError   bool
	}{
		{
			name:      "successful run",
			args:      `{"args": ["-fake_stderr", "hello"]}`,
			wantCause: "normal",
		},
		{
			name:      "non-zero exit",
			args:      `{"args": ["-fake_exit", "3"]}`,
			wantErr:   true,
			wantCause: "normal",
			isError:   true,
		},
		{
			name:     "path outside the root",
			args:     `{"args": ["-i", "/etc/passwd", "out.mp4"]}`,
			wantErr:  true,
			wantCode: -32010,
		},
		{
			name:     "invalid arguments",
			args:     `{"args": "not-an-array"}`,
			wantErr:  true,
			wantCode: -32602,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "call", "--config", writeConfig(t, nil), tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			var resp callEnvelope
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "2.0", resp.JSONRPC)
			assert.Equal(t, 1, resp.ID)

			if tt.wantCode != 0 {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
				assert.Nil(t, resp.Result)
				return
			}

			require.Nil(t, resp.Error)
			require.NotNil(t, resp.Result)
			assert.Equal(t, tt.isError, resp.Result.IsError)
			assert.Equal(t, tt.wantCause, resp.Result.StructuredContent.Cause)
		})
	}
}

func TestCallCommandErrors(t *testing.T) {
	t.Run("arguments must be an object", func(t *testing.T) {
		_, _, err := execute(t, "call", "--config", writeConfig(t, nil), `["-i"]`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JSON object")
	})

	t.Run("unknown tool", func(t *testing.T) {
		out, _, err := execute(t, "call", "--config", writeConfig(t, nil), "--tool", "ffmpeg.probe", `{"args": []}`)
		require.Error(t, err)

		var resp callEnvelope
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, -32602, resp.Error.Code)
	})

	t.Run("requires exactly one argument", func(t *testing.T) {
		_, _, err := execute(t, "call", "--config", writeConfig(t, nil))
		assert.Error(t, err)
	})
}
