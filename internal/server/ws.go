package server

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/spotforge/spotforge/internal/job"
)

// jobWS streams progress events for one job over a websocket until the
// job reaches a terminal state or the client goes away.
func (s *State) jobWS(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.Jobs.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "job not found"})
		return
	}

	// Subscribe before reading the snapshot: the runner persists the
	// terminal record before publishing, so either the snapshot already
	// shows the terminal state or the event arrives on the channel.
	events, cancel := s.Runner.Subscribe(id)
	defer cancel()
	j, _ := s.Jobs.Get(id)

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		klog.V(1).Infof("websocket accept failed for job %s: %v", id, err)
		return
	}
	defer conn.CloseNow()
	ctx := c.Request.Context()

	if err := wsjson.Write(ctx, conn, j); err != nil {
		return
	}
	if j.Status != job.StatusRunning {
		conn.Close(websocket.StatusNormalClosure, "job finished")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				klog.V(1).Infof("websocket write failed for job %s: %v", id, err)
				return
			}
		}
	}
}
