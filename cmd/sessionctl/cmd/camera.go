package cmd

import (
	"github.com/spf13/cobra"

	"github.com/r58io/core-service/internal/apiserver"
)

func newStartCameraCmd() *cobra.Command {
	var cameraID string

	c := &cobra.Command{
		Use:   "start-camera",
		Short: "Start a single camera's ingest pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCameraMethod("start_camera", cameraID)
		},
	}
	c.Flags().StringVar(&cameraID, "camera", "", "camera ID")
	_ = c.MarkFlagRequired("camera")
	return c
}

func newStopCameraCmd() *cobra.Command {
	var cameraID string

	c := &cobra.Command{
		Use:   "stop-camera",
		Short: "Stop a single camera's ingest pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCameraMethod("stop_camera", cameraID)
		},
	}
	c.Flags().StringVar(&cameraID, "camera", "", "camera ID")
	_ = c.MarkFlagRequired("camera")
	return c
}

func runCameraMethod(method, cameraID string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.close()

	result, err := c.call(method, apiserver.CameraParams{CameraID: cameraID})
	if err != nil {
		return err
	}
	return printResult(result)
}
