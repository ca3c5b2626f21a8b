// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sqlstore

import (
	"encoding/json"

	"github.com/jontk/melon/internal/job"
	melonerrors "github.com/jontk/melon/pkg/errors"
)

func toRow(j *job.Job) (*jobRow, error) {
	args, err := json.Marshal(j.ScriptArgs)
	if err != nil {
		return nil, melonerrors.Wrap(melonerrors.Internal, "marshal script args", err)
	}

	return &jobRow{
		ID:             j.ID,
		User:           j.User,
		ScriptPath:     j.ScriptPath,
		ScriptArgs:     string(args),
		CPUCount:       j.Resources.CPUCount,
		MemoryBytes:    j.Resources.MemoryBytes,
		TimeMinutes:    j.Resources.TimeMinutes,
		SubmitTime:     j.SubmitTime,
		StartTime:      j.StartTime,
		StopTime:       j.StopTime,
		Status:         string(j.Status),
		AssignedNodeID: j.AssignedNodeID,
	}, nil
}

func fromRow(row *jobRow) (*job.Job, error) {
	var args []string
	if row.ScriptArgs != "" {
		if err := json.Unmarshal([]byte(row.ScriptArgs), &args); err != nil {
			return nil, melonerrors.Wrap(melonerrors.Internal, "unmarshal script args", err)
		}
	}

	return &job.Job{
		ID:         row.ID,
		User:       row.User,
		ScriptPath: row.ScriptPath,
		ScriptArgs: args,
		Resources: job.ResourceRequest{
			CPUCount:    row.CPUCount,
			MemoryBytes: row.MemoryBytes,
			TimeMinutes: row.TimeMinutes,
		},
		SubmitTime:     row.SubmitTime,
		StartTime:      row.StartTime,
		StopTime:       row.StopTime,
		Status:         job.Status(row.Status),
		AssignedNodeID: row.AssignedNodeID,
	}, nil
}
